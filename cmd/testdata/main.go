package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"pkg.jsn.cam/toptokens/cmd/testdata/generator"
)

/* generates token streams, one token per line, for toptokens runs */

var (
	Kind       = flag.String("kind", "zipf", "generator to use (see -list)")
	Count      = flag.Int64("count", 0, "number of lines (0 = generator default)")
	Vocabulary = flag.Int("vocab", generator.DefaultVocabulary, "distinct tokens to draw from")
	Seed       = flag.Uint64("seed", 1, "random seed; equal seeds give identical files")
	OutputPath = flag.String("output", "var/tokens.txt", "output file path")
	ListKinds  = flag.Bool("list", false, "list generators and exit")
)

func main() {
	flag.Parse()

	if *ListKinds {
		for _, name := range generator.List() {
			g, _ := generator.Get(name, *Vocabulary)
			fmt.Printf("%-8s %s\n", name, g.Description())
		}
		return
	}

	gen, err := generator.Get(*Kind, *Vocabulary)
	if err != nil {
		log.Fatal(err)
	}
	gen.Init(rand.New(rand.NewPCG(*Seed, *Seed)))

	count := *Count
	if count <= 0 {
		count = gen.DefaultCount()
	}

	if err := os.MkdirAll(filepath.Dir(*OutputPath), 0755); err != nil {
		log.Fatal(err)
	}
	file, err := os.Create(*OutputPath)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	w := bufio.NewWriterSize(file, 1<<20)
	bar := progressbar.Default(count, "generating")
	for i := int64(0); i < count; i++ {
		if err := gen.WriteLine(w); err != nil {
			log.Fatal(err)
		}
		if i%10000 == 0 {
			bar.Set64(i)
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
	bar.Finish()

	info, err := file.Stat()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nWrote %s lines (%s) of %s to %s\n",
		humanize.Comma(count), humanize.Bytes(uint64(info.Size())), *Kind, *OutputPath)
}
