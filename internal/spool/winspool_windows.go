//go:build windows

package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

var (
	winspool = windows.NewLazySystemDLL("winspool.drv")

	procOpenPrinter      = winspool.NewProc("OpenPrinterW")
	procClosePrinter     = winspool.NewProc("ClosePrinter")
	procStartDocPrinter  = winspool.NewProc("StartDocPrinterW")
	procEndDocPrinter    = winspool.NewProc("EndDocPrinter")
	procStartPagePrinter = winspool.NewProc("StartPagePrinter")
	procEndPagePrinter   = winspool.NewProc("EndPagePrinter")
	procWritePrinter     = winspool.NewProc("WritePrinter")
)

// docInfo1 mirrors DOC_INFO_1W.
type docInfo1 struct {
	docName    *uint16
	outputFile *uint16
	datatype   *uint16
}

// Winspool submits jobs through the Windows print spooler.
type Winspool struct{}

// RawPrint writes data as a RAW job, the way the spooler passes ESC/POS
// through to receipt printers untouched.
func (Winspool) RawPrint(ctx context.Context, printer string, data []byte) error {
	if printer == "" {
		return ErrNoPrinter
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name, err := windows.UTF16PtrFromString(printer)
	if err != nil {
		return err
	}
	var h windows.Handle
	if r, _, err := procOpenPrinter.Call(uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(&h)), 0); r == 0 {
		return fmt.Errorf("OpenPrinter %q: %w", printer, err)
	}
	defer procClosePrinter.Call(uintptr(h))

	doc := docInfo1{
		docName:  windows.StringToUTF16Ptr(JobName),
		datatype: windows.StringToUTF16Ptr("RAW"),
	}
	if r, _, err := procStartDocPrinter.Call(uintptr(h), 1, uintptr(unsafe.Pointer(&doc))); r == 0 {
		return fmt.Errorf("StartDocPrinter: %w", err)
	}
	defer procEndDocPrinter.Call(uintptr(h))

	if r, _, err := procStartPagePrinter.Call(uintptr(h)); r == 0 {
		return fmt.Errorf("StartPagePrinter: %w", err)
	}
	defer procEndPagePrinter.Call(uintptr(h))

	if len(data) == 0 {
		return nil
	}
	var written uint32
	r, _, err := procWritePrinter.Call(uintptr(h), uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)), uintptr(unsafe.Pointer(&written)))
	if r == 0 {
		return fmt.Errorf("WritePrinter: %w", err)
	}
	if int(written) != len(data) {
		return fmt.Errorf("WritePrinter: wrote %d of %d bytes", written, len(data))
	}
	return nil
}

// PrintPDF stores the document in a temp file and asks the shell's PDF
// handler to print it to printer.
func (Winspool) PrintPDF(ctx context.Context, printer string, pdf []byte) error {
	if printer == "" {
		return ErrNoPrinter
	}
	path := filepath.Join(os.TempDir(), JobName+"-"+uuid.NewString()+".pdf")
	if err := os.WriteFile(path, pdf, 0600); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	defer os.Remove(path)

	script := fmt.Sprintf("Start-Process -FilePath '%s' -Verb PrintTo -ArgumentList '\"%s\"' -WindowStyle Hidden -Wait",
		psQuote(path), psQuote(printer))
	out, err := execStdin(ctx, nil, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		return fmt.Errorf("PrintTo %s: %w: %s", printer, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func psQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
