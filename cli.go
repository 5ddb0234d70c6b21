package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skridlevsky/thoughtgraph/document"
	"github.com/skridlevsky/thoughtgraph/importer"
	"github.com/skridlevsky/thoughtgraph/parser"
	"github.com/skridlevsky/thoughtgraph/search"
	"github.com/skridlevsky/thoughtgraph/store"
	"github.com/skridlevsky/thoughtgraph/types"
	"github.com/skridlevsky/thoughtgraph/vault"
)

// commands are the subcommands accepted as the first argument. Each returns
// the process exit code.
var commands = map[string]func(args []string) int{
	"add":    runAdd,
	"import": runImport,
	"tree":   runTree,
	"search": runSearch,
	"export": runExport,
	"verify": runVerify,
}

// contextFlag collects a context one value per -in flag, so values may
// contain any character.
type contextFlag []string

func (c *contextFlag) String() string { return strings.Join(*c, " > ") }

func (c *contextFlag) Set(v string) error {
	*c = append(*c, v)
	return nil
}

// session is an opened document for a single subcommand.
type session struct {
	name  string
	doc   *document.Document
	log   *zap.Logger
	close func()
}

// open validates cfg and opens the database. Errors are printed and
// reported as false.
func open(name string, cfg *config) (*session, bool) {
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "thoughtgraph %s: %v\n", name, err)
		return nil, false
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thoughtgraph %s: %v\n", name, err)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, closeDoc, err := openDocument(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thoughtgraph %s: %v\n", name, err)
		log.Sync()
		return nil, false
	}
	return &session{name: name, doc: doc, log: log, close: func() {
		closeDoc()
		log.Sync()
	}}, true
}

func (s *session) fail(err error) int {
	fmt.Fprintf(os.Stderr, "thoughtgraph %s: %v\n", s.name, err)
	return 1
}

// runAdd appends a thought to a context.
func runAdd(args []string) int {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	cfg := bindConfig(fs)
	var in contextFlag
	fs.Var(&in, "in", "Context value, repeat for each level (default: top level)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: thoughtgraph add [-in VALUE]... CONTENT\n")
		fmt.Fprintf(os.Stderr, "       echo CONTENT | thoughtgraph add -in VALUE\n\n")
		fmt.Fprintf(os.Stderr, "Appends a thought after the last child of a context.\n")
		fmt.Fprintf(os.Stderr, "Prints the rank it was given on success.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	content := readContent(fs)
	if content == "" {
		fmt.Fprintf(os.Stderr, "thoughtgraph add: no content provided\n\n")
		fs.Usage()
		return 1
	}

	s, ok := open("add", cfg)
	if !ok {
		return 1
	}
	defer s.close()

	res, err := s.doc.Dispatch(context.Background(), document.InsertChild{
		Context: types.Context(in),
		Value:   content,
		Append:  true,
	})
	if err != nil {
		return s.fail(err)
	}
	if len(res.Path) > 0 {
		fmt.Println(res.Path[len(res.Path)-1].Rank)
	}
	return 0
}

// runImport imports a markdown bullet outline from a file or stdin.
func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfg := bindConfig(fs)
	skipRoot := fs.Bool("skip-root", false, "Drop a single top-level bullet and import its children")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: thoughtgraph import [-skip-root] FILE\n")
		fmt.Fprintf(os.Stderr, "       cat outline.md | thoughtgraph import\n\n")
		fmt.Fprintf(os.Stderr, "Imports an indented bullet outline at the top level.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	var text string
	if fs.NArg() > 0 {
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "thoughtgraph import: %v\n", err)
			return 1
		}
		text = string(data)
	} else {
		text = readStdin()
	}

	blocks := parser.ParseOutline(text)
	if len(blocks) == 0 {
		fmt.Fprintf(os.Stderr, "thoughtgraph import: no outline found\n\n")
		fs.Usage()
		return 1
	}

	s, ok := open("import", cfg)
	if !ok {
		return 1
	}
	defer s.close()

	res, err := s.doc.Dispatch(context.Background(), document.Import{Blocks: blocks, SkipRoot: *skipRoot})
	if err != nil {
		return s.fail(err)
	}
	fmt.Printf("imported %d thoughts (version %d)\n", importer.CountBlocks(blocks), res.Version)
	return 0
}

// runTree prints a context and its descendants as a bullet outline.
func runTree(args []string) int {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	cfg := bindConfig(fs)
	depth := fs.Int("depth", 0, "Levels to print (0 = all)")
	asJSON := fs.Bool("json", false, "Print JSON instead of an outline")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: thoughtgraph tree [-depth N] [-json] [VALUE...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints the thoughts under a context, given as its values from the top.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	s, ok := open("tree", cfg)
	if !ok {
		return 1
	}
	defer s.close()

	nodes := store.Tree(s.doc.Snapshot(), types.Context(fs.Args()), *depth)
	if *asJSON {
		data, err := json.MarshalIndent(nodes, "", "  ")
		if err != nil {
			return s.fail(err)
		}
		fmt.Println(string(data))
		return 0
	}
	printNodes(os.Stdout, nodes, 0)
	return 0
}

// runSearch performs full-text search and prints results to stdout.
func runSearch(args []string) int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cfg := bindConfig(fs)
	limit := fs.Int("limit", 10, "Max results")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: thoughtgraph search [-limit N] QUERY\n\n")
		fmt.Fprintf(os.Stderr, "Full-text search across all thoughts.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	query := strings.Join(fs.Args(), " ")
	if query == "" {
		fs.Usage()
		return 1
	}

	s, ok := open("search", cfg)
	if !ok {
		return 1
	}
	defer s.close()

	ix := search.New()
	ix.Build(s.doc.Snapshot())
	results := ix.Search(query, *limit)
	if len(results) == 0 {
		fmt.Fprintf(os.Stderr, "no results for %q\n", query)
		return 1
	}
	for _, r := range results {
		for _, c := range r.Contexts {
			fmt.Printf("[%s] %s\n", contextLabel(c), r.Value)
		}
	}
	return 0
}

// runExport writes each top-level thought to a markdown file.
func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfg := bindConfig(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: thoughtgraph export DIR\n\n")
		fmt.Fprintf(os.Stderr, "Writes every top-level thought as DIR/<value>.md.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	s, ok := open("export", cfg)
	if !ok {
		return 1
	}
	defer s.close()

	n, err := vault.Export(fs.Arg(0), s.doc.Snapshot())
	if err != nil {
		return s.fail(err)
	}
	fmt.Printf("exported %d files to %s\n", n, fs.Arg(0))
	return 0
}

// runVerify checks both indexes against each other.
func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	cfg := bindConfig(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: thoughtgraph verify\n\n")
		fmt.Fprintf(os.Stderr, "Reports every thought/context edge the two indexes disagree on.\n\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	s, ok := open("verify", cfg)
	if !ok {
		return 1
	}
	defer s.close()

	if err := s.doc.Verify(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	snap := s.doc.Snapshot()
	fmt.Printf("ok: %d thoughts, %d contexts, version %d\n", snap.LexemeCount(), snap.ParentCount(), snap.Version())
	return 0
}

// --- Helpers ---

// readContent gets content from positional args or stdin (if piped).
func readContent(fs *flag.FlagSet) string {
	if args := fs.Args(); len(args) > 0 {
		return strings.Join(args, " ")
	}
	return strings.TrimSpace(readStdin())
}

// readStdin reads stdin only when it is piped, not a terminal.
func readStdin() string {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return ""
	}
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return ""
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return string(data)
}

func printNodes(w io.Writer, nodes []store.Node, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", depth), n.Value)
		printNodes(w, n.Children, depth+1)
	}
}

func contextLabel(c types.Context) string {
	if c.IsRoot() {
		return "top"
	}
	return strings.Join(c, " > ")
}
