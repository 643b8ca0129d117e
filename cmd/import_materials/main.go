package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"scentledger/internal/config"
	"scentledger/internal/db"
	"scentledger/internal/ledger"
	applog "scentledger/internal/log"
	"scentledger/internal/workspace"
	"scentledger/models"
)

var (
	bracketPattern  = regexp.MustCompile(`\[[^\]]*\]`)
	cleanWhitespace = regexp.MustCompile(`\s+`)
)

func main() {
	path := "materials.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := run(context.Background(), path); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("import path must not be empty")
	}

	records, err := readRecords(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	accessor := db.NewAccessor(cfg.Database)
	defer accessor.Close()

	ws, err := workspace.Open(ctx, accessor)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}

	res, err := importRecords(ctx, ws.Ledger, records)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Imported %d materials from %s (%d created, %d updated, %d skipped)\n",
		res.created+res.updated, filepath.Base(path), res.created, res.updated, res.skipped)
	return nil
}

type result struct {
	created int
	updated int
	skipped int
}

// importRecords upserts each record by name, falling back to the CAS number
// when the name is new. A record matched by CAS keeps the stored name.
func importRecords(ctx context.Context, l *ledger.Ledger, records []map[string]string) (result, error) {
	var res result

	existing, err := l.ListAbstracts(ctx)
	if err != nil {
		return res, fmt.Errorf("list materials: %w", err)
	}
	byName := make(map[string]models.AbstractMaterial, len(existing))
	byCAS := make(map[string]models.AbstractMaterial, len(existing))
	for _, m := range existing {
		byName[strings.ToLower(m.Name)] = m
		if m.CASNumber != nil && *m.CASNumber != "" {
			byCAS[*m.CASNumber] = m
		}
	}

	for idx, record := range records {
		spec, ok := buildSpec(record)
		if !ok {
			applog.Warn(ctx, "skipping material record", "record", idx+1, "name", record["name"], "type", record["type"])
			res.skipped++
			continue
		}

		current, found := byName[strings.ToLower(spec.Name)]
		if !found && spec.CASNumber != nil {
			if current, found = byCAS[*spec.CASNumber]; found {
				spec.Name = current.Name
			}
		}

		var saved models.AbstractMaterial
		if found {
			saved, err = l.UpdateAbstractMaterial(ctx, current.ID, spec)
			res.updated++
		} else {
			saved, err = l.DefineAbstractMaterial(ctx, spec)
			res.created++
		}
		if err != nil {
			return res, fmt.Errorf("record %d (%s): %w", idx+1, spec.Name, err)
		}

		byName[strings.ToLower(saved.Name)] = saved
		if saved.CASNumber != nil && *saved.CASNumber != "" {
			byCAS[*saved.CASNumber] = saved
		}
	}

	return res, nil
}

func readRecords(path string) ([]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(bytes.NewReader(data))
	case ".pdf":
		text, err := extractTextFromPDF(data)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}
		return parseCSV(strings.NewReader(text))
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// extractTextFromPDF returns the plain text of every page, one page per block.
// Catalogues exported from a spreadsheet keep their comma separated rows.
func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func parseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows found")
	}

	header := make([]string, len(rows[0]))
	for idx, key := range rows[0] {
		header[idx] = headerKey(key)
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		record := make(map[string]string, len(header))
		for idx, key := range header {
			if idx >= len(row) {
				continue
			}
			record[key] = strings.TrimSpace(row[idx])
		}
		records = append(records, record)
	}
	return records, nil
}

func headerKey(value string) string {
	key := strings.ToLower(strings.TrimSpace(value))
	switch key {
	case "ingredient name", "material", "material name":
		return "name"
	case "cas", "cas number", "cas no", "cas no.":
		return "cas_number"
	case "notes", "description":
		return "description"
	case "link", "links", "url":
		return "links"
	case "tag", "tags":
		return "tags"
	}
	return strings.ReplaceAll(key, " ", "_")
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func buildSpec(row map[string]string) (ledger.AbstractSpec, bool) {
	name := normalizeText(stripFootnotes(row["name"]))
	kind, ok := parseType(row["type"])
	if name == "" || !ok {
		return ledger.AbstractSpec{}, false
	}

	return ledger.AbstractSpec{
		Name:        name,
		Type:        kind,
		Description: optional(normalizeText(row["description"])),
		Family:      optional(normalizeValue(row["family"])),
		CASNumber:   optional(normalizeValue(row["cas_number"])),
		Tags:        splitList(row["tags"]),
		Links:       splitList(row["links"]),
	}, true
}

func parseType(value string) (models.MaterialType, bool) {
	switch strings.ToLower(normalizeValue(value)) {
	case "eo", "essential oil", "essential":
		return models.MaterialTypeEssentialOil, true
	case "sy", "synthetic", "aroma chemical", "aromachemical":
		return models.MaterialTypeSynthetic, true
	case "na", "absolute", "natural", "natural isolate":
		return models.MaterialTypeAbsolute, true
	}
	return "", false
}

func normalizeValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return ""
	}
	return value
}

func normalizeText(value string) string {
	value = normalizeValue(value)
	if value == "" {
		return value
	}
	return strings.TrimSpace(cleanWhitespace.ReplaceAllString(value, " "))
}

func stripFootnotes(value string) string {
	return strings.TrimSpace(bracketPattern.ReplaceAllString(value, ""))
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func splitList(value string) []string {
	value = normalizeValue(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(strings.ReplaceAll(value, ";", ","), ",")
	out := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		clean := strings.TrimSpace(stripFootnotes(part))
		if clean == "" {
			continue
		}
		key := strings.ToLower(clean)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, clean)
	}
	return out
}
