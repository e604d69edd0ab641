package infrastructure

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/zap"

	"potbench/internal/domain"
)

// TXTReportWriter writes the raw per-item timing table as
// tab-separated text.
type TXTReportWriter struct {
	logger *zap.Logger
}

func NewTXTReportWriter(logger *zap.Logger) *TXTReportWriter {
	return &TXTReportWriter{logger: logger}
}

func (w *TXTReportWriter) WriteTimings(filename string, rows []domain.TimingRow) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	fmt.Fprintf(writer, "Item\tLocal_ms\tRemote_ms\n")
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%.3f\t%.3f\n",
			row.WorkID,
			float64(row.Local.Microseconds())/1000,
			float64(row.Remote.Microseconds())/1000)
	}
	return nil
}
