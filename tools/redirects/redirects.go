// Command redirects patches the targets of //go:redirect-from directives
// into the .goredirectstbl section of the kernel image. The boot code walks
// the table and overwrites the entry of each source symbol with a jump to
// its replacement.
package main

import (
	"context"
	"debug/elf"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"golang.org/x/mod/modfile"
)

const (
	directive    = "//go:redirect-from"
	tableSection = ".goredirectstbl"
	kernelRoot   = "kernel"
)

type redirect struct {
	src string
	dst string

	srcVMA uint32
	dstVMA uint32
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[redirects] error: %s\n", err.Error())
	os.Exit(int(subcommands.ExitFailure))
}

// modulePath returns the module path declared by the go.mod file in dir.
func modulePath(dir string) (string, error) {
	modFile := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(modFile)
	if err != nil {
		return "", err
	}

	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("%s: missing module directive", modFile)
	}
	return path, nil
}

func collectGoFiles(root string) ([]string, error) {
	var goFiles []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			goFiles = append(goFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return goFiles, nil
}

// findRedirects parses the Go files below root (relative to the module
// directory modDir) and returns the declared redirects. Destination names
// are qualified with the module path the way the linker names symbols.
func findRedirects(modDir, root string) ([]*redirect, error) {
	prefix, err := modulePath(modDir)
	if err != nil {
		return nil, err
	}

	goFiles, err := collectGoFiles(filepath.Join(modDir, root))
	if err != nil {
		return nil, err
	}

	var redirects []*redirect
	for _, goFile := range goFiles {
		fset := token.NewFileSet()

		f, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", goFile, err)
		}

		rel, err := filepath.Rel(modDir, filepath.Dir(goFile))
		if err != nil {
			return nil, err
		}

		for _, decl := range f.Decls {
			fnDecl, ok := decl.(*ast.FuncDecl)
			if !ok || fnDecl.Doc == nil {
				continue
			}

			fqName := fmt.Sprintf("%s/%s.%s", prefix, filepath.ToSlash(rel), fnDecl.Name)
			for _, comment := range fnDecl.Doc.List {
				if !strings.HasPrefix(comment.Text, directive) {
					continue
				}

				fields := strings.Fields(comment.Text)
				if len(fields) != 2 || fields[0] != directive {
					return nil, fmt.Errorf("malformed go:redirect-from syntax for %q", fqName)
				}

				redirects = append(redirects, &redirect{
					src: fields[1],
					dst: fqName,
				})
			}
		}
	}

	return redirects, nil
}

func elfRedirectTableOffset(imgFile string) (uint64, error) {
	f, err := elf.Open(imgFile)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	redirectsSection := f.Section(tableSection)
	if redirectsSection == nil {
		return 0, fmt.Errorf("%s: missing %s section", imgFile, tableSection)
	}

	return redirectsSection.Offset, nil
}

// writeRedirectTable writes a (src, dst) pair of 32-bit addresses per
// redirect.
func writeRedirectTable(w io.Writer, redirects []*redirect) error {
	for _, redirect := range redirects {
		if err := binary.Write(w, binary.LittleEndian, [2]uint32{redirect.srcVMA, redirect.dstVMA}); err != nil {
			return err
		}
	}
	return nil
}

func elfWriteRedirectTable(redirects []*redirect, imgFile string) error {
	redirectTableOffset, err := elfRedirectTableOffset(imgFile)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(imgFile, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Seek(int64(redirectTableOffset), io.SeekStart); err != nil {
		return err
	}

	return writeRedirectTable(f, redirects)
}

// resolveRedirectSymbols fills in the symbol addresses of every redirect.
func resolveRedirectSymbols(redirects []*redirect, symbols []elf.Symbol) error {
	for _, redirect := range redirects {
		for _, symbol := range symbols {
			if symbol.Name == redirect.src {
				redirect.srcVMA = uint32(symbol.Value)
			}
			if symbol.Name == redirect.dst {
				redirect.dstVMA = uint32(symbol.Value)
			}
		}

		switch {
		case redirect.srcVMA == 0:
			return fmt.Errorf("could not locate address of %q", redirect.src)
		case redirect.dstVMA == 0:
			return fmt.Errorf("could not locate address of %q", redirect.dst)
		}
	}

	return nil
}

func elfResolveRedirectSymbols(redirects []*redirect, imgFile string) error {
	f, err := elf.Open(imgFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return fmt.Errorf("%s: expected a 32-bit image", imgFile)
	}

	symbols, err := f.Symbols()
	if err != nil {
		return err
	}

	if err = resolveRedirectSymbols(redirects, symbols); err != nil {
		return fmt.Errorf("%s: %w", imgFile, err)
	}
	return nil
}

// count implements subcommands.Command for the "count" command.
type count struct{}

func (*count) Name() string     { return "count" }
func (*count) Synopsis() string { return "print the number of redirects." }
func (*count) Usage() string {
	return `count - print the number of go:redirect-from directives in the kernel sources.
`
}
func (*count) SetFlags(*flag.FlagSet) {}

func (*count) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	redirects, err := findRedirects(".", kernelRoot)
	if err != nil {
		exit(err)
	}

	fmt.Printf("%d", len(redirects))
	return subcommands.ExitSuccess
}

// populateTable implements subcommands.Command for the "populate-table"
// command.
type populateTable struct{}

func (*populateTable) Name() string     { return "populate-table" }
func (*populateTable) Synopsis() string { return "write the redirect table into a kernel image." }
func (*populateTable) Usage() string {
	return `populate-table IMAGE - resolve the redirect symbols of IMAGE and fill in its
` + tableSection + ` section.
`
}
func (*populateTable) SetFlags(*flag.FlagSet) {}

func (*populateTable) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	imgFile := f.Arg(0)

	redirects, err := findRedirects(".", kernelRoot)
	if err != nil {
		exit(err)
	}

	if err = elfResolveRedirectSymbols(redirects, imgFile); err != nil {
		exit(err)
	}

	if err = elfWriteRedirectTable(redirects, imgFile); err != nil {
		exit(err)
	}
	return subcommands.ExitSuccess
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(new(count), "")
	subcommands.Register(new(populateTable), "")

	flag.Parse()
	if _, err := os.Stat(kernelRoot); err != nil {
		exit(errors.New("this tool must be run from the module root folder"))
	}

	os.Exit(int(subcommands.Execute(context.Background())))
}
