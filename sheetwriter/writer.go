// Package sheetwriter écrit un classeur xlsx à partir d'un flux de lignes, sans
// garder le jeu de données en mémoire: les cellules de chaque feuille sont
// stockées sur disque (DiskV) jusqu'à l'écriture du classeur par Finalize.
package sheetwriter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tealeg/xlsx/v3"
)

// DefaultCeiling: une ligne sous la limite usuelle des tableurs (1 048 576, en-tête compris).
const DefaultCeiling = 1048570

var (
	ErrFinalized   = errors.New("sheetwriter: workbook already finalized")
	ErrColumnCount = errors.New("sheetwriter: row width differs from header")
)

// SheetInfo décrit une feuille scellée.
type SheetInfo struct {
	Name string
	Rows int
}

// Artifact est le classeur produit par Finalize.
type Artifact struct {
	Path   string
	Rows   int
	Sheets []SheetInfo
}

// Writer n'est pas partagé entre goroutines: un Writer par job d'export.
type Writer struct {
	path      string
	headers   []string
	ceiling   int
	sheetName string

	file      *xlsx.File
	sheets    []*xlsx.Sheet
	rows      []int
	total     int
	finalized bool
}

type Option func(*Writer)

// WithCeiling fixe le nombre maximum de lignes de données par feuille.
func WithCeiling(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.ceiling = n
		}
	}
}

// WithSheetName fixe le nom de base des feuilles (max 28 caractères, suffixe _N ajouté).
func WithSheetName(name string) Option {
	return func(w *Writer) {
		if name != "" {
			if len(name) > 28 {
				name = name[:28]
			}
			w.sheetName = name
		}
	}
}

// New prépare un classeur vers path avec les en-têtes donnés.
func New(path string, headers []string, opts ...Option) (*Writer, error) {
	if len(headers) == 0 {
		return nil, errors.New("sheetwriter: headers are required")
	}
	w := &Writer{
		path:      path,
		headers:   append([]string(nil), headers...),
		ceiling:   DefaultCeiling,
		sheetName: "Report",
		file:      xlsx.NewFile(xlsx.UseDiskVCellStore),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return w, nil
}

// Rows retourne le nombre de lignes de données ajoutées.
func (w *Writer) Rows() int { return w.total }

// Append ajoute une ligne dans la feuille courante; si elle dépasserait le plafond,
// une nouvelle feuille est ouverte avec son propre en-tête.
func (w *Writer) Append(row []string) error {
	if w.finalized {
		return ErrFinalized
	}
	if len(row) != len(w.headers) {
		return fmt.Errorf("%w: got %d, want %d", ErrColumnCount, len(row), len(w.headers))
	}
	last := len(w.sheets) - 1
	if last < 0 || w.rows[last]+1 > w.ceiling {
		if err := w.openSheet(); err != nil {
			return err
		}
		last++
	}
	writeRow(w.sheets[last], row)
	w.rows[last]++
	w.total++
	return nil
}

func (w *Writer) openSheet() error {
	name := w.SheetName(len(w.sheets))
	sh, err := w.file.AddSheet(name)
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	writeRow(sh, w.headers)
	w.sheets = append(w.sheets, sh)
	w.rows = append(w.rows, 0)
	return nil
}

func writeRow(sh *xlsx.Sheet, values []string) {
	r := sh.AddRow()
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}

// SheetName retourne le nom de la feuille i (0-based).
func (w *Writer) SheetName(i int) string {
	if i == 0 {
		return w.sheetName
	}
	return fmt.Sprintf("%s_%d", w.sheetName, i+1)
}

// Finalize écrit le classeur. Sans aucune ligne, le classeur contient une seule
// feuille avec l'en-tête.
func (w *Writer) Finalize() (*Artifact, error) {
	if w.finalized {
		return nil, ErrFinalized
	}
	w.finalized = true
	defer w.closeSheets()

	if len(w.sheets) == 0 {
		if err := w.openSheet(); err != nil {
			return nil, err
		}
	}
	part := w.path + ".part"
	if err := w.file.Save(part); err != nil {
		os.Remove(part)
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := os.Rename(part, w.path); err != nil {
		os.Remove(part)
		return nil, err
	}

	art := &Artifact{Path: w.path, Rows: w.total}
	for i := range w.sheets {
		art.Sheets = append(art.Sheets, SheetInfo{Name: w.SheetName(i), Rows: w.rows[i]})
	}
	return art, nil
}

// Abort abandonne le classeur et libère le stockage des cellules.
func (w *Writer) Abort() {
	if w.finalized {
		return
	}
	w.finalized = true
	w.closeSheets()
}

func (w *Writer) closeSheets() {
	for _, sh := range w.sheets {
		sh.Close()
	}
}

// SheetSizes calcule la répartition de total lignes sur des feuilles de capacité ceiling.
func SheetSizes(total, ceiling int) []int {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if total <= 0 {
		return []int{0}
	}
	var sizes []int
	for total > 0 {
		n := ceiling
		if total < n {
			n = total
		}
		sizes = append(sizes, n)
		total -= n
	}
	return sizes
}
