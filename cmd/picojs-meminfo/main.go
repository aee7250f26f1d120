// Command picojs-meminfo runs a synthetic property workload against the
// engine core and reports memory and lookup cache statistics.
package main

import (
	"flag"
	"fmt"
	"os"

	"picojs/pkg/config"
	"picojs/pkg/ecma"
	"picojs/pkg/mem"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML settings file")
	objects := flag.Int("objects", 100, "number of objects to populate")
	props := flag.Int("props", 48, "properties per object")
	lookups := flag.Int("lookups", 10, "lookup passes over every property")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "picojs-meminfo: %v\n", err)
			os.Exit(1)
		}
	}
	opts := cfg.Options()
	opts.Stats = true

	ctx := ecma.NewContext(opts)
	defer ctx.Close()

	refs, names := populate(ctx, *objects, *props)
	for pass := 0; pass < *lookups; pass++ {
		for _, obj := range refs {
			for _, n := range names {
				if ctx.FindProperty(obj, n) == ecma.PropNotFound {
					fmt.Fprintln(os.Stderr, "picojs-meminfo: lookup lost a property")
					os.Exit(1)
				}
			}
		}
	}

	printHeapStats(ctx)
	ctx.PrintCacheStats()
}

func populate(ctx *ecma.Context, objects, props int) ([]mem.Ref, []ecma.Name) {
	names := make([]ecma.Name, props)
	for i := range names {
		names[i] = ctx.NewName(fmt.Sprintf("field%03d", i))
	}
	refs := make([]mem.Ref, objects)
	proto := ctx.NewObject(mem.Null, ecma.ObjectTypeGeneral)
	for i := range refs {
		refs[i] = ctx.NewObject(proto, ecma.ObjectTypeGeneral)
		for j, n := range names {
			idx := ctx.CreateDataProperty(refs[i], n, ecma.PropFlagsAll)
			ctx.AssignDataProperty(refs[i], idx, ecma.IntegerValue(int32(j)))
		}
	}
	return refs, names
}

func printHeapStats(ctx *ecma.Context) {
	h := ctx.Heap()
	fmt.Printf("Heap: %d bytes used", h.Used())
	if h.Limit() > 0 {
		fmt.Printf(" of %d", h.Limit())
	}
	fmt.Println()
	stats := h.Stats()
	for _, cat := range []mem.Category{mem.CategoryObject, mem.CategoryString, mem.CategoryProperty, mem.CategoryByteCode} {
		fmt.Printf("  %-9s allocated: %7d bytes, peak: %7d bytes\n",
			cat, stats.AllocatedBytes(cat), stats.PeakBytes(cat))
	}
}
