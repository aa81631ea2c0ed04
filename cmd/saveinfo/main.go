// Command saveinfo dumps the structure of a save file: header fields,
// the component type table with a per-type count, and the wire and
// circuit state totals.
//
// Usage: saveinfo <save file>...
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/circuitreel/circuitreel/internal/blotter"
)

var showTypes = flag.Bool("types", true, "Show the component type histogram")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <save file>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	for _, path := range flag.Args() {
		f, err := blotter.ReadFile(path)
		if err != nil {
			log.Fatalf("%v", err)
		}
		dump(path, f)
	}
}

func dump(path string, f *blotter.File) {
	fmt.Printf("%s\n", path)
	fmt.Printf("  format version: %d\n", f.SaveVersion)
	fmt.Printf("  game version:   %d.%d.%d.%d\n",
		f.GameVersion[0], f.GameVersion[1], f.GameVersion[2], f.GameVersion[3])
	fmt.Printf("  save type:      %s\n", saveTypeName(f.SaveType))
	fmt.Printf("  components:     %d (max address %d)\n", len(f.Components), f.MaxAddress())
	fmt.Printf("  wires:          %d\n", len(f.Wires))
	fmt.Printf("  circuit states: max id %d", f.MaxCircuitStateID())
	if f.SaveType == blotter.SaveTypeWorld {
		fmt.Printf(", %d state bytes", len(f.CircuitStates.WorldStates))
	} else {
		fmt.Printf(", %d on", len(f.CircuitStates.SubassemblyOnStates))
	}
	fmt.Println()

	if !*showTypes {
		return
	}
	counts := make(map[uint16]int)
	for i := range f.Components {
		counts[f.Components[i].TypeID]++
	}
	types := append([]blotter.ComponentType(nil), f.ComponentTypes...)
	sort.Slice(types, func(i, j int) bool { return types[i].NumericID < types[j].NumericID })
	fmt.Printf("  types (%d):\n", len(types))
	for _, ct := range types {
		fmt.Printf("    %5d  %-32s %d\n", ct.NumericID, ct.TextID, counts[ct.NumericID])
	}
}

func saveTypeName(t blotter.SaveType) string {
	switch t {
	case blotter.SaveTypeWorld:
		return "world"
	case blotter.SaveTypeSubassembly:
		return "subassembly"
	default:
		return fmt.Sprintf("unknown (%d)", t)
	}
}
