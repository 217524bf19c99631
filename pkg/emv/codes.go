package emv

// Label tables for issuer country (ISO 3166 numeric) and transaction
// currency (ISO 4217 numeric). Codes are 4-hex-digit normalized strings.
// The labels exist purely for logging; an unlisted code is not an error.

var countryLabels = map[string]string{
	"0036": "Australia",
	"0076": "Brazil",
	"0124": "Canada",
	"0156": "China",
	"0250": "France",
	"0276": "Germany",
	"0344": "Hong Kong",
	"0356": "India",
	"0380": "Italy",
	"0392": "Japan",
	"0410": "South Korea",
	"0484": "Mexico",
	"0528": "Netherlands",
	"0643": "Russia",
	"0702": "Singapore",
	"0724": "Spain",
	"0752": "Sweden",
	"0756": "Switzerland",
	"0784": "United Arab Emirates",
	"0792": "Turkey",
	"0826": "United Kingdom",
	"0840": "United States",
	"0978": "Eurozone",
}

var currencyLabels = map[string]string{
	"0036": "AUD",
	"0124": "CAD",
	"0156": "CNY",
	"0208": "DKK",
	"0344": "HKD",
	"0356": "INR",
	"0392": "JPY",
	"0410": "KRW",
	"0484": "MXN",
	"0578": "NOK",
	"0643": "RUB",
	"0702": "SGD",
	"0752": "SEK",
	"0756": "CHF",
	"0784": "AED",
	"0826": "GBP",
	"0840": "USD",
	"0978": "EUR",
	"0985": "PLN",
}

// CountryLabel returns a human-readable country name for logging, or
// "Unknown" when the code is not in the table.
func CountryLabel(code string) string {
	if l, ok := countryLabels[code]; ok {
		return l
	}
	return "Unknown"
}

// CurrencyLabel returns the ISO currency code for logging, or "Unknown".
func CurrencyLabel(code string) string {
	if l, ok := currencyLabels[code]; ok {
		return l
	}
	return "Unknown"
}
