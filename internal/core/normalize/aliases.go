package normalize

// BankAlias describes one bank or fintech entry in the alias table.
// Keys are matched as lowercased, space-stripped substrings against the
// sender domain, sender display name and subject. The table is data:
// read-only at runtime, updated only with a config reload
type BankAlias struct {
	Code     string
	Name     string
	Category string
	Domains  []string
	Keys     []string
}

var bankAliases = []BankAlias{
	{
		Code: "GTB", Name: "Guaranty Trust Bank", Category: "commercial",
		Domains: []string{"gtbank.com", "gtb.com.ng"},
		Keys:    []string{"gtbank", "gtb", "guarantytrust"},
	},
	{
		Code: "FBN", Name: "First Bank of Nigeria", Category: "commercial",
		Domains: []string{"firstbanknigeria.com", "firstbank.com"},
		Keys:    []string{"firstbank", "fbn"},
	},
	{
		Code: "UBA", Name: "United Bank for Africa", Category: "commercial",
		Domains: []string{"uba.com", "ubagroup.com"},
		Keys:    []string{"uba", "unitedbankforafrica"},
	},
	{
		Code: "ZEN", Name: "Zenith Bank", Category: "commercial",
		Domains: []string{"zenithbank.com"},
		Keys:    []string{"zenith", "zenithbank"},
	},
	{
		Code: "ACC", Name: "Access Bank", Category: "commercial",
		Domains: []string{"accessbankplc.com", "accessbank.com"},
		Keys:    []string{"accessbank", "access"},
	},
	{
		Code: "STB", Name: "Stanbic IBTC Bank", Category: "commercial",
		Domains: []string{"stanbicibtc.com"},
		Keys:    []string{"stanbic", "stanbicibtc"},
	},
	{
		Code: "ECO", Name: "Ecobank Nigeria", Category: "commercial",
		Domains: []string{"ecobank.com"},
		Keys:    []string{"ecobank"},
	},
	{
		Code: "FID", Name: "Fidelity Bank", Category: "commercial",
		Domains: []string{"fidelitybank.ng"},
		Keys:    []string{"fidelity", "fidelitybank"},
	},
	{
		Code: "UNI", Name: "Union Bank of Nigeria", Category: "commercial",
		Domains: []string{"unionbankng.com"},
		Keys:    []string{"unionbank"},
	},
	{
		Code: "STL", Name: "Sterling Bank", Category: "commercial",
		Domains: []string{"sterling.ng", "sterlingbankng.com"},
		Keys:    []string{"sterling", "sterlingbank"},
	},
	{
		Code: "WEM", Name: "Wema Bank", Category: "commercial",
		Domains: []string{"wemabank.com", "alat.ng"},
		Keys:    []string{"wema", "wemabank", "alat"},
	},
	{
		Code: "KUD", Name: "Kuda Microfinance Bank", Category: "fintech",
		Domains: []string{"kuda.com", "kudabank.com"},
		Keys:    []string{"kuda", "kudabank"},
	},
	{
		Code: "OPY", Name: "OPay Digital Services", Category: "fintech",
		Domains: []string{"opay-nigeria.com", "opayweb.com"},
		Keys:    []string{"opay"},
	},
	{
		Code: "PMF", Name: "PalmPay", Category: "fintech",
		Domains: []string{"palmpay.com", "palmpay-inc.com"},
		Keys:    []string{"palmpay"},
	},
	{
		Code: "MNP", Name: "Moniepoint Microfinance Bank", Category: "fintech",
		Domains: []string{"moniepoint.com"},
		Keys:    []string{"moniepoint"},
	},
	{
		Code: "PST", Name: "Paystack", Category: "processor",
		Domains: []string{"paystack.com", "paystack.co"},
		Keys:    []string{"paystack"},
	},
	{
		Code: "FLW", Name: "Flutterwave", Category: "processor",
		Domains: []string{"flutterwave.com", "flutterwavego.com"},
		Keys:    []string{"flutterwave"},
	},
}

// Aliases returns the read-only bank alias table
func Aliases() []BankAlias { return bankAliases }
