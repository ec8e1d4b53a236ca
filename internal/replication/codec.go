package replication

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/index"
)

// Wire opcodes. Inserts carry the node kind in the opcode; the other
// operations name the kind in a field.
const (
	codeDelete  = "DN"
	codeRename  = "RN"
	codeMove    = "MV"
	codeCopy    = "CP"
	codeReorder = "MO"
)

var insertCodes = map[index.Kind]string{
	index.Library:            "AL",
	index.LibraryNote:        "ALN",
	index.Document:           "AD",
	index.DocumentNote:       "ADN",
	index.Episode:            "AE",
	index.EpisodeNote:        "AEN",
	index.Transcript:         "AT",
	index.TranscriptNote:     "ATN",
	index.Collection:         "AC",
	index.CollectionNote:     "ACN",
	index.Quote:              "AQ",
	index.QuoteNote:          "AQN",
	index.Clip:               "ACL",
	index.ClipNote:           "ACLN",
	index.Snapshot:           "AS",
	index.SnapshotNote:       "ASN",
	index.KeywordGroup:       "AKG",
	index.Keyword:            "AK",
	index.KeywordExample:     "AKE",
	index.SearchResults:      "ASR",
	index.SearchLibrary:      "ASL",
	index.SearchDocument:     "ASD",
	index.SearchEpisode:      "ASE",
	index.SearchTranscript:   "AST",
	index.SearchCollection:   "ASC",
	index.SearchQuote:        "ASQ",
	index.SearchClip:         "ASCL",
	index.SearchSnapshot:     "ASS",
	index.SearchKeywordGroup: "ASKG",
	index.SearchKeyword:      "ASK",
}

var insertKinds = func() map[string]index.Kind {
	out := make(map[string]index.Kind, len(insertCodes))
	for k, code := range insertCodes {
		out[code] = k
	}
	return out
}()

// Encode renders d as one wire line (no trailing newline).
//
//	insert:  <A…> family record parentRecord sortOrder path…
//	DN:      family kind record path…
//	RN:      family kind record newName path…
//	MO:      family kind record sortOrder path…
//	MV, CP:  family srcKind dstKind srcRecord sortOrder srcLen src… dst…
//
// Fields are joined with index.Separator. An unset sort order is empty.
func Encode(d Delta) (string, error) {
	if err := d.Validate(); err != nil {
		return "", err
	}
	fam := d.Family().String()
	var fields []string
	switch d.Op {
	case OpInsert:
		code, ok := insertCodes[d.Kind]
		if !ok {
			return "", fmt.Errorf("replication: %s is not insertable: %w", d.Kind, apperr.ErrKindMismatch)
		}
		fields = []string{code, fam, itoa(d.Record), itoa(d.ParentRecord), optInt(d.SortOrder)}
	case OpDelete:
		fields = []string{codeDelete, fam, d.Kind.String(), itoa(d.Record)}
	case OpRename:
		fields = []string{codeRename, fam, d.Kind.String(), itoa(d.Record), d.Name}
	case OpReorder:
		fields = []string{codeReorder, fam, d.Kind.String(), itoa(d.Record), optInt(d.SortOrder)}
	case OpMove, OpCopy:
		code := codeCopy
		if d.Op == OpMove {
			code = codeMove
		}
		fields = []string{code, fam, d.Kind.String(), d.DestKind.String(), itoa(d.Record), optInt(d.SortOrder), itoa(len(d.Path))}
		fields = append(fields, d.Path...)
		fields = append(fields, d.Dest...)
		return strings.Join(fields, index.Separator), nil
	}
	fields = append(fields, d.Path...)
	return strings.Join(fields, index.Separator), nil
}

// Decode parses a line produced by Encode. Any malformed input yields an
// error wrapping apperr.ErrReplicationDecode.
func Decode(line string) (Delta, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Delta{}, decodeErr("empty message")
	}
	f := strings.Split(line, index.Separator)
	if len(f) < 2 {
		return Delta{}, decodeErr("missing family")
	}
	fam, err := index.ParseFamily(f[1])
	if err != nil {
		return Delta{}, decodeErr(err.Error())
	}

	var d Delta
	switch code := f[0]; code {
	case codeDelete, codeRename, codeReorder:
		want := 5
		if code != codeDelete {
			want = 6
		}
		if len(f) < want {
			return Delta{}, decodeErr(code + ": too few fields")
		}
		if d.Kind, err = parseKind(f[2], fam); err != nil {
			return Delta{}, err
		}
		if d.Record, err = atoi(f[3]); err != nil {
			return Delta{}, err
		}
		switch code {
		case codeDelete:
			d.Op = OpDelete
			d.Path = index.Path(f[4:])
		case codeRename:
			d.Op = OpRename
			d.Name = f[4]
			d.Path = index.Path(f[5:])
		case codeReorder:
			d.Op = OpReorder
			if d.SortOrder, err = parseOptInt(f[4]); err != nil {
				return Delta{}, err
			}
			d.Path = index.Path(f[5:])
		}

	case codeMove, codeCopy:
		if len(f) < 8 {
			return Delta{}, decodeErr(code + ": too few fields")
		}
		d.Op = OpCopy
		if code == codeMove {
			d.Op = OpMove
		}
		if d.Kind, err = parseKind(f[2], fam); err != nil {
			return Delta{}, err
		}
		if d.DestKind, err = parseKind(f[3], fam); err != nil {
			return Delta{}, err
		}
		if d.Record, err = atoi(f[4]); err != nil {
			return Delta{}, err
		}
		if d.SortOrder, err = parseOptInt(f[5]); err != nil {
			return Delta{}, err
		}
		var n int
		if n, err = atoi(f[6]); err != nil {
			return Delta{}, err
		}
		rest := f[7:]
		if n < 1 || n > len(rest) {
			return Delta{}, decodeErr(fmt.Sprintf("%s: source length %d out of range", code, n))
		}
		d.Path = index.Path(rest[:n])
		if len(rest) > n {
			d.Dest = index.Path(rest[n:])
		}

	default:
		kind, ok := insertKinds[code]
		if !ok {
			return Delta{}, decodeErr(fmt.Sprintf("unknown opcode %q", code))
		}
		if kind.Family() != fam {
			return Delta{}, decodeErr(fmt.Sprintf("%s does not belong to %s", code, fam))
		}
		if len(f) < 6 {
			return Delta{}, decodeErr(code + ": too few fields")
		}
		d.Op = OpInsert
		d.Kind = kind
		if d.Record, err = atoi(f[2]); err != nil {
			return Delta{}, err
		}
		if d.ParentRecord, err = atoi(f[3]); err != nil {
			return Delta{}, err
		}
		if d.SortOrder, err = parseOptInt(f[4]); err != nil {
			return Delta{}, err
		}
		d.Path = index.Path(f[5:])
	}

	if err := d.Validate(); err != nil {
		return Delta{}, fmt.Errorf("replication: decode %q: %v: %w", f[0], err, apperr.ErrReplicationDecode)
	}
	return d, nil
}

func decodeErr(msg string) error {
	return fmt.Errorf("replication: %s: %w", msg, apperr.ErrReplicationDecode)
}

func parseKind(s string, fam index.Family) (index.Kind, error) {
	k, err := index.ParseKind(s)
	if err != nil {
		return index.KindInvalid, decodeErr(err.Error())
	}
	if k.Family() != fam {
		return index.KindInvalid, decodeErr(fmt.Sprintf("%s does not belong to %s", k, fam))
	}
	return k, nil
}

func itoa(i int) string { return strconv.Itoa(i) }

func atoi(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, decodeErr(fmt.Sprintf("bad number %q", s))
	}
	return i, nil
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func parseOptInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	i, err := atoi(s)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
