// Package parser turns a supported document file into one plain-text string.
package parser

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"document-qa/internal/models"
)

// SupportedExtensions is the accepted upload list, checked before any processing.
var SupportedExtensions = []string{
	".txt", ".md",
	".pdf",
	".docx",
	".pptx",
	".xlsx", ".xls",
	".csv",
	".html", ".htm",
}

// IsSupported reports whether path has an accepted extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Loader implements the format loader collaborator.
type Loader struct{}

func New() *Loader {
	return &Loader{}
}

func (l *Loader) Load(path string) (string, error) {
	return Load(path)
}

// Load extracts the full text of the file at path.
func Load(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	log.Debug().Str("path", path).Str("ext", ext).Msg("Loading document")

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt":
		text, err = parseText(path)
	case ".md":
		text, err = parseMarkdown(path)
	case ".pdf":
		text, err = parsePDF(path)
	case ".docx":
		text, err = parseDOCX(path)
	case ".pptx":
		text, err = parsePPTX(path)
	case ".xlsx", ".xls":
		text, err = parseSpreadsheet(path)
	case ".csv":
		text, err = parseCSV(path)
	case ".html", ".htm":
		text, err = parseHTML(path)
	default:
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", models.ErrReadError, filepath.Base(path), err)
	}
	return text, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func parseText(path string) (string, error) {
	return readFile(path)
}

func parsePDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, fmt.Sprintf("\n--- PAGE %d ---\n%s", i, pageText))
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

var (
	wordParagraphEnd = regexp.MustCompile(`</w:p>`)
	wordText         = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	slideParagraph   = regexp.MustCompile(`</a:p>`)
	slideText        = regexp.MustCompile(`(?s)<a:t(?:\s[^>]*)?>(.*?)</a:t>`)
	slideName        = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

func parseDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var paragraphs []string
	for _, p := range wordParagraphEnd.Split(r.Editable().GetContent(), -1) {
		if text := joinRuns(wordText, p); strings.TrimSpace(text) != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func parsePPTX(path string) (string, error) {
	f, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range f.File {
		if m := slideName.FindStringSubmatch(file.Name); m != nil {
			num, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{num: num, file: file})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var out []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}

		var lines []string
		for _, p := range slideParagraph.Split(string(data), -1) {
			if text := joinRuns(slideText, p); strings.TrimSpace(text) != "" {
				lines = append(lines, text)
			}
		}
		if len(lines) > 0 {
			out = append(out, fmt.Sprintf("\n--- SLIDE %d ---\n%s", s.num, strings.Join(lines, "\n")))
		}
	}
	return strings.Join(out, "\n\n"), nil
}

// joinRuns concatenates the text runs matched by re inside one XML paragraph.
func joinRuns(re *regexp.Regexp, xmlContent string) string {
	var parts []string
	for _, m := range re.FindAllStringSubmatch(xmlContent, -1) {
		parts = append(parts, html.UnescapeString(m[1]))
	}
	return strings.Join(parts, "")
}

func parseSpreadsheet(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sheets []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		if rowText := joinRows(rows); len(rowText) > 0 {
			sheets = append(sheets, fmt.Sprintf("\n--- SHEET: %s ---\n%s", sheetName, strings.Join(rowText, "\n")))
		}
	}
	return strings.Join(sheets, "\n\n"), nil
}

func parseCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(strings.Join(joinRows(rows), "\n"), ""), nil
}

// joinRows renders each row with at least one non-empty cell as "a | b | c".
func joinRows(rows [][]string) []string {
	var out []string
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, strings.Join(row, " | "))
				break
			}
		}
	}
	return out
}
