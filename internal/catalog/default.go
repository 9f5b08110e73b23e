package catalog

import "strings"

// defaultConfig is scalpel's built-in signature catalogue, used when
// no -c configuration path is given and no scalpel.conf exists in the
// working directory. It covers the same file families the teacher's
// carver.Signatures table did, reexpressed as scalpel configuration
// lines (with real footers and search modes instead of a flat
// max-size-only scan).
const defaultConfig = `
# Default scalpel signature catalogue.
# suffix  case(y/n)  max_length  header  footer  [search_mode]

jpg  y  50000000  \xff\xd8\xff\xe0        \xff\xd9               FORWARD
png  y  50000000  \x89\x50\x4e\x47\x0d\x0a\x1a\x0a  \x49\x45\x4e\x44\xae\x42\x60\x82  FORWARD_NEXT
gif  y  20000000  \x47\x49\x46\x38        \x00\x3b               FORWARD
pdf  y  500000000 \x25\x50\x44\x46        \x25\x25\x45\x4f\x46    FORWARD
zip  y  1000000000 \x50\x4b\x03\x04
mp3  y  100000000 \x49\x44\x33
`

// DefaultCatalog returns scalpel's built-in signature set.
func DefaultCatalog() (*Catalog, error) {
	return Load(strings.NewReader(defaultConfig))
}
