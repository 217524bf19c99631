package commands

import (
	"encoding/hex"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ghostfacexx/nfcmitm/pkg/bypass"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Print the EMV bypass strategy table",
	Long: `Print the static strategy table: for each brand, product type and
terminal combination, the CVM data a modified payload will present.`,
	RunE: runStrategies,
}

func runStrategies(cmd *cobra.Command, args []string) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Brand", "Type", "Terminal", "Primary", "Fallback", "9F34", "9F33", "CVM List (8E)"})

	// Hex columns dominate the width; keep rows compact, separate the
	// header so the EMV tag columns line up under their tag names.
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(true)
	table.SetBorder(false)
	table.SetRowSeparator("")
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range bypass.Rows() {
		table.Append([]string{
			row.Brand,
			row.CardType,
			row.Terminal,
			row.Strategy.Primary,
			row.Strategy.Fallback,
			hexCell(row.Strategy.CVMResults),
			hexCell(row.Strategy.TerminalCaps),
			hexCell(row.Strategy.CVMList),
		})
	}

	table.Render()
	return nil
}

// hexCell renders EMV value bytes for the table, "-" when the row carries
// none.
func hexCell(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
