package catalog

// DefaultSay is the built-in "what will he say" point table.
var DefaultSay = map[string]int{
	"Trillion":                                   7,
	"250":                                        15,
	"Trump":                                      15,
	"ICE / National Guard":                       17,
	"Fentanyl / Cocaine":                         18,
	"Fraud":                                      20,
	"Hottest":                                    25,
	"DEI / Woke":                                 26,
	"Radical Left":                               29,
	"Nuclear":                                    25,
	"Olympics / World Cup":                       30,
	"The State of the / our Union is Strong":     30,
	"Affordability":                              32,
	"Eight War":                                  32,
	"MAHA / Make America Healthy Again":          35,
	"Transgender":                                34,
	"Mental Institution":                         37,
	"Drill Baby Drill":                           39,
	"Ballroom":                                   49,
	"Vaccine / Autism":                           48,
	"Fake News":                                  51,
	"Highest Inflation":                          56,
	"Somali / Somalia / Somalian":                55,
	"Hoax":                                       60,
	"Windmill":                                   62,
	"Sleepy Joe":                                 71,
	"Crypto / Bitcoin":                           74,
	"DOGE / Department of Government Efficiency": 74,
	"UFC":                                        75,
	"TDS / Trump Derangement Syndrome":           82,
	"Discombobulator":                            88,
	"Ethereum":                                   97,
}

// DefaultMention is the built-in "who will he mention" point table.
var DefaultMention = map[string]int{
	"Biden":              8,
	"Marco / Rubio":      31,
	"Charlie Kirk":       39,
	"President Xi":       43,
	"Putin":              45,
	"Thune":              50,
	"Witkoff":            52,
	"Hegseth":            58,
	"Bessent":            56,
	"Homan":              60,
	"Kristi / Noem":      61,
	"Lincoln":            61,
	"Kash / Patel":       69,
	"Obama":              66,
	"Pam / Bondi":        66,
	"Zelensky":           67,
	"Bibi / Netanyahu":   72,
	"Jared / Kushner":    69,
	"Reagan":             71,
	"Kamala":             72,
	"Clinton":            76,
	"Elon / Musk":        76,
	"Newsom / Newscum":   81,
	"Modi":               79,
	"Warsh":              85,
	"Karoline / Leavitt": 86,
	"Usha":               84,
	"Howard / Lutnick":   82,
	"Walz":               86,
	"Schumer":            86,
	"Epstein":            91,
	"Pelosi":             91,
	"Prince Mohammed":    89,
	"Keir / Starmer":     93,
	"Tulsi / Gabbard":    95,
	"Zohran / Mamdani":   92,
	"Pocahontas":         93,
	"Judy Shelton":       99,
	"Satoshi":            99,
}

// DefaultAliases maps friendly labels onto canonical venue titles.
var DefaultAliases = map[string]string{
	"Marco Rubio":      "Marco / Rubio",
	"Kristi Noem":      "Kristi / Noem",
	"Kash Patel":       "Kash / Patel",
	"Pam Bondi":        "Pam / Bondi",
	"Bibi Netanyahu":   "Bibi / Netanyahu",
	"Jared Kushner":    "Jared / Kushner",
	"Elon Musk":        "Elon / Musk",
	"Newsom":           "Newsom / Newscum",
	"Karoline Leavitt": "Karoline / Leavitt",
	"Howard Lutnick":   "Howard / Lutnick",
	"Keir Starmer":     "Keir / Starmer",
	"Tulsi Gabbard":    "Tulsi / Gabbard",
	"Zohran Mamdani":   "Zohran / Mamdani",
	"Woke / DEI":       "DEI / Woke",
}

// Default returns the built-in table.
func Default() *Table {
	t, err := New(DefaultSay, DefaultMention, DefaultAliases)
	if err != nil {
		panic(err)
	}
	return t
}
