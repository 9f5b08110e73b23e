package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gorichard/scalpel/internal/catalog"
	"github.com/gorichard/scalpel/internal/coverage"
	"github.com/gorichard/scalpel/internal/offsets"
)

// WriteHFD emits the per-image header/footer database artifact,
// translating every logical offset Pass 1 recorded back to its
// physical address through facade. Rules whose suffix is the
// "no extension" sentinel are skipped, matching the source's
// exclusion of typeless rules from the HFD.
func WriteHFD(outputDir, imageBase string, rules []*catalog.Rule, offs *offsets.Set, facade *coverage.Facade) error {
	path := filepath.Join(outputDir, imageBase+".hfd")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("engine: create hfd %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range rules {
		if r.NoExtension {
			continue
		}
		db := offs.For(r.Index)

		fmt.Fprintln(w, r.Suffix)
		fmt.Fprintln(w, len(db.Headers))
		for _, h := range db.Headers {
			fmt.Fprintln(w, facade.LogicalToPhysical(h))
		}
		fmt.Fprintln(w, len(db.Footers))
		for _, ft := range db.Footers {
			fmt.Fprintln(w, facade.LogicalToPhysical(ft))
		}
	}
	return w.Flush()
}
