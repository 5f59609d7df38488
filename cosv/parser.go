package cosv

import (
	"encoding/json"
	"strings"

	"github.com/cosv-horizon/cosv-backend/model"
	"github.com/cosv-horizon/cosv-backend/util"
)

// DecodeOne parses raw bytes as a single COSV record. Used by the
// single-record preview and commit paths.
func DecodeOne(raw []byte) (*model.CosvRecord, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, &ParseError{Msg: "empty payload"}
	}
	var rec model.CosvRecord
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	normalizeRecord(&rec)
	return &rec, nil
}

// Decode parses raw bytes into an ordered list of COSV records. Serialization
// shapes are tried in order: JSON array, object with an "items" array, single
// object, newline-delimited records. The first shape that yields at least one
// record wins; otherwise a ParseError carries the decode message.
func Decode(raw []byte) ([]model.CosvRecord, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, &ParseError{Msg: "empty payload"}
	}

	if strings.HasPrefix(text, "[") {
		var records []model.CosvRecord
		if err := json.Unmarshal([]byte(text), &records); err != nil {
			return nil, &ParseError{Msg: err.Error()}
		}
		if len(records) == 0 {
			return nil, &ParseError{Msg: "no records in payload"}
		}
		normalizeRecords(records)
		return records, nil
	}

	if strings.HasPrefix(text, "{") {
		// The pointer distinguishes an absent "items" key from an empty one:
		// an envelope with no records is an error, not a single record.
		var envelope struct {
			Items *[]json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Items != nil {
			if len(*envelope.Items) == 0 {
				return nil, &ParseError{Msg: "no records in payload"}
			}
			records := make([]model.CosvRecord, 0, len(*envelope.Items))
			for _, item := range *envelope.Items {
				var rec model.CosvRecord
				if err := json.Unmarshal(item, &rec); err != nil {
					return nil, &ParseError{Msg: err.Error()}
				}
				records = append(records, rec)
			}
			normalizeRecords(records)
			return records, nil
		}

		var one model.CosvRecord
		err := json.Unmarshal([]byte(text), &one)
		if err == nil {
			normalizeRecord(&one)
			return []model.CosvRecord{one}, nil
		}
		// A brace-prefixed payload that is not one document may still be
		// newline-delimited records.
		if records := decodeLines(text); len(records) >= 2 {
			return records, nil
		}
		return nil, &ParseError{Msg: err.Error()}
	}

	if records := decodeLines(text); len(records) >= 2 {
		return records, nil
	}

	// Re-attempt as a single document so the caller sees the decode message.
	var one model.CosvRecord
	if err := json.Unmarshal([]byte(text), &one); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	normalizeRecord(&one)
	return []model.CosvRecord{one}, nil
}

// decodeLines parses each non-blank line independently, skipping lines that
// fail to decode.
func decodeLines(text string) []model.CosvRecord {
	var records []model.CosvRecord
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var rec model.CosvRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	normalizeRecords(records)
	return records
}

func normalizeRecords(records []model.CosvRecord) {
	for i := range records {
		normalizeRecord(&records[i])
	}
}

// normalizeRecord fills affected package ecosystem and name from the purl
// when the structured fields are absent.
func normalizeRecord(rec *model.CosvRecord) {
	for i := range rec.Affected {
		pkg := rec.Affected[i].Package
		if pkg == nil || pkg.Purl == "" {
			continue
		}
		parsed, err := util.ParsePURL(pkg.Purl)
		if err != nil {
			continue
		}
		if pkg.Ecosystem == "" {
			pkg.Ecosystem = util.PurlTypeToEcosystem(parsed.Type)
		}
		if pkg.Name == "" {
			if parsed.Namespace != "" {
				pkg.Name = parsed.Namespace + "/" + parsed.Name
			} else {
				pkg.Name = parsed.Name
			}
		}
	}
}
