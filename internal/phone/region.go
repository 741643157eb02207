package phone

import "strings"

// regionTable maps 2-letter regions to their area codes. When an area code is
// listed under more than one region the first listing wins; the table is kept
// free of such overlaps and region_test.go checks that.
var regionTable = []struct {
	region string
	codes  string
}{
	{"AL", "205 251 256 334 659 938"},
	{"AK", "907"},
	{"AZ", "480 520 602 623 928"},
	{"AR", "479 501 870"},
	{"CA", "209 213 279 310 323 341 350 408 415 424 442 510 530 559 562 619 626 628 650 657 661 669 707 714 747 760 805 818 820 831 840 858 909 916 925 949 951"},
	{"CO", "303 719 720 970 983"},
	{"CT", "203 475 860 959"},
	{"DE", "302"},
	{"DC", "202 771"},
	{"FL", "239 305 321 352 386 407 448 561 656 689 727 754 772 786 813 850 863 904 941 954"},
	{"GA", "229 404 470 478 678 706 762 770 912"},
	{"HI", "808"},
	{"ID", "208 986"},
	{"IL", "217 224 309 312 331 464 618 630 708 773 779 815 847 872"},
	{"IN", "219 260 317 463 574 765 812 930"},
	{"IA", "319 515 563 641 712"},
	{"KS", "316 620 785 913"},
	{"KY", "270 364 502 606 859"},
	{"LA", "225 318 337 504 985"},
	{"ME", "207"},
	{"MD", "240 301 410 443 667"},
	{"MA", "339 351 413 508 617 774 781 857 978"},
	{"MI", "231 248 269 313 517 586 616 679 734 810 906 947 989"},
	{"MN", "218 320 507 612 651 763 952"},
	{"MS", "228 601 662 769"},
	{"MO", "314 417 573 636 660 816"},
	{"MT", "406"},
	{"NE", "308 402 531"},
	{"NV", "702 725 775"},
	{"NH", "603"},
	{"NJ", "201 551 609 640 732 848 856 862 908 973"},
	{"NM", "505 575"},
	{"NY", "212 315 332 347 363 516 518 585 607 631 646 680 716 718 838 845 914 917 929 934"},
	{"NC", "252 336 472 704 743 828 910 919 980 984"},
	{"ND", "701"},
	{"OH", "216 220 234 326 330 380 419 440 513 567 614 740 937"},
	{"OK", "405 539 572 580 918"},
	{"OR", "458 503 541 971"},
	{"PA", "215 223 267 272 412 445 484 570 582 610 717 724 814 835 878"},
	{"RI", "401"},
	{"SC", "803 843 854 864"},
	{"SD", "605"},
	{"TN", "423 615 629 731 865 901 931"},
	{"TX", "210 214 254 281 325 346 361 409 430 432 469 512 682 713 726 737 806 817 830 832 903 915 936 940 945 956 972 979"},
	{"UT", "385 435 801"},
	{"VT", "802"},
	{"VA", "276 434 540 571 703 757 804"},
	{"WA", "206 253 360 425 509 564"},
	{"WV", "304 681"},
	{"WI", "262 414 534 608 715 920"},
	{"WY", "307"},
	{"PR", "787 939"},
	{"GU", "671"},
	{"VI", "340"},
	{"AS", "684"},
	{"MP", "670"},
	{"ON", "226 249 289 343 365 416 437 519 548 613 647 705 807 905"},
	{"QC", "418 438 450 514 579 581 819 873"},
	{"BC", "236 250 604 672 778"},
	{"AB", "368 403 587 780 825"},
	{"MB", "204 431"},
	{"SK", "306 639"},
	{"NS", "782 902"},
	{"NB", "506"},
	{"NL", "709"},
}

var areaCodeRegions = buildAreaCodeIndex()

func buildAreaCodeIndex() map[string]string {
	index := make(map[string]string)
	for _, entry := range regionTable {
		for _, code := range strings.Fields(entry.codes) {
			if _, exists := index[code]; exists {
				continue
			}
			index[code] = entry.region
		}
	}
	return index
}

// RegionForAreaCode returns the region for a 3-digit area code, or "" if the
// code is not in the table.
func RegionForAreaCode(areaCode string) string {
	return areaCodeRegions[areaCode]
}

// Regions returns every region known to the lookup table, in table order
func Regions() []string {
	regions := make([]string, 0, len(regionTable))
	for _, entry := range regionTable {
		regions = append(regions, entry.region)
	}
	return regions
}

// NormalizeRegion upper-cases and trims a region code for comparison
func NormalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}
