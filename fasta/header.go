package fasta

import (
	"fmt"
	"regexp"
	"strings"
)

// HeaderFormat is one of the known FASTA header layouts.
type HeaderFormat int

const (
	// Free is any header; the identifier is the whole header line.
	Free HeaderFormat = iota

	// SwissProt headers look like "sp|P12345|NAME_HUMAN desc OS=Homo sapiens ..."
	SwissProt

	// TrEMBL headers look like "tr|Q12345|Q12345_HUMAN desc OS=Homo sapiens ..."
	TrEMBL

	// RefSeq headers look like "gi|123|ref|NP_000001.1| desc [Homo sapiens]"
	RefSeq

	// Auto picks the format of each header with Detect.
	Auto
)

// NotAvailable is used for header fields that could not be found.
const NotAvailable = "NotAvailable"

var formatNames = map[HeaderFormat]string{
	Free:      "free",
	SwissProt: "swissprot",
	TrEMBL:    "tremble",
	RefSeq:    "genebank",
	Auto:      "auto",
}

func (f HeaderFormat) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("HeaderFormat(%d)", int(f))
}

// ParseFormat returns the header format with the given command line name.
func ParseFormat(name string) (HeaderFormat, error) {
	switch strings.ToLower(name) {
	case "free", "":
		return Free, nil
	case "swissprot", "sp":
		return SwissProt, nil
	case "tremble", "trembl", "tr":
		return TrEMBL, nil
	case "genebank", "genbank", "refseq":
		return RefSeq, nil
	case "auto":
		return Auto, nil
	}
	return Free, fmt.Errorf("unknown header format %q", name)
}

// Header holds the fields parsed from a header line.
type Header struct {
	Format     HeaderFormat
	Identifier string
	Accession  string
	Organism   string
}

type variant struct {
	format     HeaderFormat
	detect     *regexp.Regexp
	identifier *regexp.Regexp
	accession  *regexp.Regexp
	organism   *regexp.Regexp
}

var (
	reUniProtOrganism = regexp.MustCompile(` OS=(\w+ \w+(?: \w+)?)(?:\s|$)`)

	// variants are tried in order by Detect; Free is the fallback.
	variants = []variant{
		{
			format:     SwissProt,
			detect:     regexp.MustCompile(`^sp\|`),
			identifier: regexp.MustCompile(`^sp\|[^|]+\|(\S+)(?:\s|$)`),
			accession:  regexp.MustCompile(`^sp\|([^|]+)\|`),
			organism:   reUniProtOrganism,
		},
		{
			format:     TrEMBL,
			detect:     regexp.MustCompile(`^tr\|`),
			identifier: regexp.MustCompile(`^tr\|[^|]+\|(\S+)(?:\s|$)`),
			accession:  regexp.MustCompile(`^tr\|([^|]+)\|`),
			organism:   reUniProtOrganism,
		},
		{
			format:     RefSeq,
			detect:     regexp.MustCompile(`^gi\|\d+\|ref\|`),
			identifier: regexp.MustCompile(`^gi\|\d+\|ref\|([^|\s]+)\|?(?:\s|$)`),
			accession:  regexp.MustCompile(`^gi\|(\d+)\|ref`),
			organism:   regexp.MustCompile(` \[(\w+ \w+(?: \w+)?)\]`),
		},
	}
)

// Detect returns the format of a header line (without the leading '>').
func Detect(header string) HeaderFormat {
	for _, v := range variants {
		if v.detect.MatchString(header) {
			return v.format
		}
	}
	return Free
}

func submatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return NotAvailable
}

// ParseHeader extracts the identifier, accession and organism from a header
// line (without the leading '>').  An error is returned if a non-free
// format does not yield an identifier.
func ParseHeader(format HeaderFormat, header string) (Header, error) {

	header = strings.TrimSpace(header)
	if format == Auto {
		format = Detect(header)
	}

	if format == Free {
		h := Header{
			Format:     Free,
			Identifier: header,
			Accession:  NotAvailable,
			Organism:   NotAvailable,
		}
		if f := strings.FieldsFunc(header, func(r rune) bool { return r == '|' || r == ' ' || r == '\t' }); len(f) > 0 {
			h.Accession = f[0]
		}
		if header == "" {
			return h, fmt.Errorf("empty header")
		}
		return h, nil
	}

	for _, v := range variants {
		if v.format != format {
			continue
		}
		h := Header{
			Format:     format,
			Identifier: submatch(v.identifier, header),
			Accession:  submatch(v.accession, header),
			Organism:   submatch(v.organism, header),
		}
		if h.Identifier == NotAvailable {
			return h, fmt.Errorf("no %s identifier found in header %q", format, header)
		}
		return h, nil
	}

	return Header{}, fmt.Errorf("unknown header format %v", format)
}
