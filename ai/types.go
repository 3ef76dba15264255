package ai

// DocumentTypes defines the categories a metadata extractor may assign.
var DocumentTypes = []string{
	"annual_report",
	"sustainability_report",
	"financial_statement",
	"presentation",
	"policy",
	"contract",
	"research",
	"press_release",
	"other",
}
