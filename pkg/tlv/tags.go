package tlv

// EMV tag identifiers the proxy cares about. Unknown tags are parsed and
// carried through like any other; the Name table below reports them as
// "Unknown".
var (
	TagAID                 = MustID("4F")
	TagApplicationLabel    = MustID("50")
	TagTrack2              = MustID("57")
	TagPAN                 = MustID("5A")
	TagCardholderName      = MustID("5F20")
	TagExpiryDate          = MustID("5F24")
	TagIssuerCountry       = MustID("5F28")
	TagCurrency            = MustID("5F2A")
	TagPANSequence         = MustID("5F34")
	TagAIP                 = MustID("82")
	TagDFName              = MustID("84")
	TagCVMList             = MustID("8E")
	TagIssuerPublicKeyCert = MustID("90")
	TagIssuerPublicKeyRem  = MustID("92")
	TagTVR                 = MustID("95")
	TagTransactionDate     = MustID("9A")
	TagTransactionType     = MustID("9C")
	TagAmountAuthorised    = MustID("9F02")
	TagAUC                 = MustID("9F07")
	TagIAD                 = MustID("9F10")
	TagTerminalCountry     = MustID("9F1A")
	TagTerminalFloorLimit  = MustID("9F1B")
	TagCryptogram          = MustID("9F26")
	TagCryptogramInfo      = MustID("9F27")
	TagIssuerPublicKeyExp  = MustID("9F32")
	TagTerminalCaps        = MustID("9F33")
	TagCVMResults          = MustID("9F34")
	TagATC                 = MustID("9F36")
	TagUnpredictableNumber = MustID("9F37")
	TagProxySignature      = MustID("9F45")
	TagCurrencyAlt         = MustID("9F51")
	TagCTQ                 = MustID("9F6C")
)

// names is the static tag table used for logging and edit summaries.
// Keyed by the uppercase hex tag.
var names = map[string]string{
	"4F":   "Application Identifier",
	"50":   "Application Label",
	"57":   "Track 2 Equivalent Data",
	"5A":   "Application PAN",
	"5F20": "Cardholder Name",
	"5F24": "Application Expiration Date",
	"5F28": "Issuer Country Code",
	"5F2A": "Transaction Currency Code",
	"5F34": "PAN Sequence Number",
	"6F":   "FCI Template",
	"70":   "Record Template",
	"77":   "Response Message Template",
	"80":   "Response Template (primitive)",
	"82":   "Application Interchange Profile",
	"84":   "Dedicated File Name",
	"87":   "Application Priority Indicator",
	"8E":   "CVM List",
	"90":   "Issuer Public Key Certificate",
	"92":   "Issuer Public Key Remainder",
	"95":   "Terminal Verification Results",
	"9A":   "Transaction Date",
	"9C":   "Transaction Type",
	"A5":   "FCI Proprietary Template",
	"9F02": "Amount, Authorised",
	"9F07": "Application Usage Control",
	"9F10": "Issuer Application Data",
	"9F1A": "Terminal Country Code",
	"9F1B": "Terminal Floor Limit",
	"9F26": "Application Cryptogram",
	"9F27": "Cryptogram Information Data",
	"9F32": "Issuer Public Key Exponent",
	"9F33": "Terminal Capabilities",
	"9F34": "CVM Results",
	"9F36": "Application Transaction Counter",
	"9F37": "Unpredictable Number",
	"9F38": "PDOL",
	"9F45": "Proxy Signature",
	"9F51": "Application Currency Code",
	"9F6C": "Card Transaction Qualifiers",
	"BF0C": "Issuer Discretionary Data",
}

// Name returns the semantic name for a tag, or "Unknown" when the tag is not
// in the static table.
func Name(tag []byte) string {
	if n, ok := names[hexUpper(tag)]; ok {
		return n
	}
	return "Unknown"
}
