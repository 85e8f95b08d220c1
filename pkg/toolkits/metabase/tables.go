package metabase

import (
	"fmt"
	"sort"
	"strings"
)

// databaseMetadata is the subset of GET /api/database/{id}/metadata this
// toolkit reads. Everything else in the response is ignored.
type databaseMetadata struct {
	Tables []tableEntry `json:"tables"`
}

// tableEntry is a single table from database metadata. The ID is untyped
// because Metabase reports virtual tables (saved questions) with string
// IDs like "card__42" alongside ordinary integer IDs.
type tableEntry struct {
	ID          any    `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	EntityType  string `json:"entity_type"`
}

// formatTablesMarkdown renders database tables as a markdown table sorted
// by display name, with pipe characters escaped so cell content cannot
// break the layout.
func formatTablesMarkdown(databaseID int, tables []tableEntry) string {
	sorted := make([]tableEntry, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DisplayName < sorted[j].DisplayName
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# Tables in Database %d\n\n", databaseID)
	fmt.Fprintf(&b, "**Total Tables:** %d\n\n", len(sorted))

	if len(sorted) == 0 {
		b.WriteString("*No tables found in this database.*\n")
		return b.String()
	}

	b.WriteString("| Table ID | Display Name | Description | Entity Type |\n")
	b.WriteString("|----------|--------------|-------------|--------------|\n")

	for _, table := range sorted {
		description := table.Description
		if description == "" {
			description = "No description"
		}
		entityType := table.EntityType
		if entityType == "" {
			entityType = "N/A"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			formatTableID(table.ID),
			escapePipes(table.DisplayName),
			escapePipes(description),
			entityType,
		)
	}

	return b.String()
}

// formatTableID renders a table ID of any JSON type.
func formatTableID(id any) string {
	switch v := id.(type) {
	case nil:
		return "N/A"
	case float64:
		// JSON numbers decode as float64; table IDs are whole numbers.
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// escapePipes escapes pipe characters to keep markdown table cells intact.
func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
