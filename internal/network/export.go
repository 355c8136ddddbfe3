package network

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LinkedListOffset is added to target indices in exports so source and target
// index spaces stay disjoint; recurrent groups share one space.
func (g *SynapseGroup) LinkedListOffset() int {
	if g.recurrent {
		return 0
	}
	return g.source.Size()
}

// WriteLinkedList writes one "<source> <target+offset> <weight>" line per
// synapse in (source, target) order.
func (g *SynapseGroup) WriteLinkedList(w io.Writer) error {
	bw := bufio.NewWriter(w)
	offset := g.LinkedListOffset()
	for _, c := range g.connections() {
		bw.WriteString(strconv.Itoa(c.Source))
		bw.WriteByte(' ')
		bw.WriteString(strconv.Itoa(c.Target + offset))
		bw.WriteByte(' ')
		bw.WriteString(formatWeight(c.Weight))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// DefaultExportName is "<label>_<timestamp>.dat".
func (g *SynapseGroup) DefaultExportName(now time.Time) string {
	label := strings.ReplaceAll(g.label, " ", "_")
	if label == "" {
		label = g.id
	}
	return fmt.Sprintf("%s_%s.dat", label, now.UTC().Format("20060102T150405"))
}

// SaveToFileAsLinkedList writes the linked-list export into dir under the
// default name and returns the path. Failures are logged and returned; the
// group is left untouched.
func (g *SynapseGroup) SaveToFileAsLinkedList(dir string) (string, error) {
	path := filepath.Join(dir, g.DefaultExportName(time.Now()))
	if err := g.writeFile(path, g.WriteLinkedList); err != nil {
		g.logger().Warn("linked list export failed", slog.String("group", g.label), slog.String("path", path), slog.Any("err", err))
		return "", err
	}
	return path, nil
}

// WriteWeightMatrix writes the dense source x target matrix, one row per
// source. Every value, the last included, is followed by ", ".
func (g *SynapseGroup) WriteWeightMatrix(w io.Writer) error {
	return WriteMatrix(w, g.WeightMatrix())
}

func (g *SynapseGroup) SaveWeightMatrix(path string) error {
	if err := g.writeFile(path, g.WriteWeightMatrix); err != nil {
		g.logger().Warn("weight matrix export failed", slog.String("group", g.label), slog.String("path", path), slog.Any("err", err))
		return err
	}
	return nil
}

// WriteMatrix uses the same row format as WriteWeightMatrix.
func WriteMatrix(w io.Writer, rows [][]float64) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		for _, v := range row {
			bw.WriteString(formatWeight(v))
			bw.WriteString(", ")
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func (g *SynapseGroup) writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
