package storage

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docquiz/internal/domain"
)

// FileManager stages uploaded PDFs on disk before they are handed to the
// provider, and owns the exported quiz PDF directory.
type FileManager struct {
	baseDir      string
	uploadDir    string
	pdfDir       string
	maxFileBytes int64
}

var pdfMagic = []byte("%PDF-")

func NewFileManager(baseDir string, maxFileBytes int64) (*FileManager, error) {
	fm := &FileManager{
		baseDir:      baseDir,
		uploadDir:    filepath.Join(baseDir, "uploads"),
		pdfDir:       filepath.Join(baseDir, "pdf"),
		maxFileBytes: maxFileBytes,
	}

	dirs := []string{fm.baseDir, fm.uploadDir, fm.pdfDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	return fm, nil
}

// StageUpload writes one uploaded document into the staging directory and
// returns its staged record. The content must start with the PDF magic
// bytes; anything else is rejected before touching disk further.
func (fm *FileManager) StageUpload(file multipart.File, filename string) (domain.StagedFile, error) {
	sample := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(file, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return domain.StagedFile{}, fmt.Errorf("read upload sample: %w", err)
	}
	sample = sample[:n]

	if !bytes.HasPrefix(sample, pdfMagic) {
		return domain.StagedFile{}, fmt.Errorf("file %s is not a PDF document", filename)
	}

	path := filepath.Join(fm.uploadDir, fmt.Sprintf("%s.pdf", uuid.NewString()))
	size, err := fm.writeWithLimit(path, sample, file)
	if err != nil {
		return domain.StagedFile{}, err
	}

	return domain.StagedFile{
		Name: filepath.Base(filename),
		Size: size,
		Path: path,
	}, nil
}

// Discard removes staged files from disk, ignoring already-removed ones.
func (fm *FileManager) Discard(files []domain.StagedFile) {
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			fmt.Printf("warning: remove staged file %s: %v\n", f.Path, err)
		}
	}
}

// PDFPath returns the on-disk location for an exported quiz PDF.
func (fm *FileManager) PDFPath(id string) string {
	return filepath.Join(fm.pdfDir, fmt.Sprintf("%s.pdf", id))
}

func (fm *FileManager) writeWithLimit(path string, sample []byte, file multipart.File) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create staged file: %w", err)
	}

	total := int64(0)

	cleanup := func(err error) (int64, error) {
		out.Close()
		os.Remove(path)
		return 0, err
	}

	if len(sample) > 0 {
		if _, err := out.Write(sample); err != nil {
			return cleanup(fmt.Errorf("write upload sample: %w", err))
		}
		total += int64(len(sample))
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			total += int64(n)
			if fm.maxFileBytes > 0 && total > fm.maxFileBytes {
				return cleanup(fmt.Errorf("file exceeds maximum size of %d bytes", fm.maxFileBytes))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(fmt.Errorf("write staged file: %w", werr))
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return cleanup(fmt.Errorf("read upload content: %w", err))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("close staged file: %w", err)
	}

	return total, nil
}

// HasPDFExtension reports whether a filename carries the .pdf extension,
// case-insensitively.
func HasPDFExtension(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
