package infrastructure

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"potbench/internal/domain"
)

// symbolNumbers maps the element symbols accepted in workload files to
// atomic numbers. Bare numbers are also accepted in place of symbols.
var symbolNumbers = map[string]uint32{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8,
	"F": 9, "Ne": 10, "Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15,
	"S": 16, "Cl": 17, "Ar": 18, "K": 19, "Ca": 20, "Fe": 26, "Ni": 28,
	"Cu": 29, "Zn": 30, "Ag": 47, "Pt": 78, "Au": 79,
}

const workloadCellEdge = 90.0

// XYZStructureReader loads a custom workload from a concatenated XYZ
// file: for each structure an atom-count line, a comment line (used as
// the work item ID when non-empty), then one "Symbol x y z" line per
// atom. Every structure is centered in the standard benchmark cell.
type XYZStructureReader struct {
	logger *zap.Logger
}

func NewXYZStructureReader(logger *zap.Logger) *XYZStructureReader {
	return &XYZStructureReader{logger: logger}
}

func (r *XYZStructureReader) ReadStructures(filename string) ([]domain.WorkItem, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var items []domain.WorkItem
	index := 0
	for {
		item, ok, err := r.readStructure(scanner, filename, index)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		items = append(items, item)
		index++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: no structures found", filename)
	}

	r.logger.Info("loaded workload file",
		zap.String("file", filename),
		zap.Int("structures", len(items)))
	return items, nil
}

func (r *XYZStructureReader) readStructure(scanner *bufio.Scanner, filename string, index int) (domain.WorkItem, bool, error) {
	line, ok := nextNonEmptyLine(scanner)
	if !ok {
		return domain.WorkItem{}, false, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || count < 1 {
		return domain.WorkItem{}, false, fmt.Errorf("%s: invalid atom count %q", filename, line)
	}

	if !scanner.Scan() {
		return domain.WorkItem{}, false, fmt.Errorf("%s: missing comment line", filename)
	}
	id := strings.TrimSpace(scanner.Text())
	if id == "" {
		id = fmt.Sprintf("%s#%d", filename, index)
	}

	numbers := make([]uint32, 0, count)
	positions := make([]float64, 0, 3*count)
	for i := 0; i < count; i++ {
		if !scanner.Scan() {
			return domain.WorkItem{}, false, fmt.Errorf("%s: %s: truncated after %d atoms", filename, id, i)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			return domain.WorkItem{}, false, fmt.Errorf("%s: %s: malformed atom line %q", filename, id, scanner.Text())
		}
		number, err := parseElement(fields[0])
		if err != nil {
			return domain.WorkItem{}, false, fmt.Errorf("%s: %s: %w", filename, id, err)
		}
		numbers = append(numbers, number)
		for _, f := range fields[1:4] {
			value, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return domain.WorkItem{}, false, fmt.Errorf("%s: %s: invalid coordinate %q", filename, id, f)
			}
			positions = append(positions, value)
		}
	}

	cfg := domain.AtomicConfiguration{
		AtomCount:     uint32(count),
		Positions:     positions,
		AtomicNumbers: numbers,
		Cell:          []float64{workloadCellEdge, 0, 0, 0, workloadCellEdge, 0, 0, 0, workloadCellEdge},
	}
	cfg.Center()
	if err := cfg.Validate(); err != nil {
		return domain.WorkItem{}, false, fmt.Errorf("%s: %s: %w", filename, id, err)
	}
	return domain.WorkItem{ID: id, Structure: cfg}, true, nil
}

func nextNonEmptyLine(scanner *bufio.Scanner) (string, bool) {
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			return scanner.Text(), true
		}
	}
	return "", false
}

func parseElement(field string) (uint32, error) {
	if number, ok := symbolNumbers[field]; ok {
		return number, nil
	}
	if n, err := strconv.Atoi(field); err == nil && n > 0 {
		return uint32(n), nil
	}
	return 0, fmt.Errorf("unknown element %q", field)
}
