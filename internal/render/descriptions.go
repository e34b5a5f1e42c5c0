package render

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/takefinance/payslip-archiver/internal/logging"
)

const defaultMethodology = "The bonus is calculated from the SLA achievement " +
	"percentage applied to the agreed bonus base for the calculation period. " +
	"Contact the finance team for the detailed methodology."

// Descriptions resolves methodology texts by SLA ID. The backing file is a
// two-column CSV (sla id, description), loaded once and cached.
type Descriptions struct {
	path string

	once  sync.Once
	texts map[int]string
}

// NewDescriptions creates a lookup over the given CSV file. An empty path
// means every lookup returns the default text.
func NewDescriptions(path string) *Descriptions {
	return &Descriptions{path: path}
}

// ForSLA returns the methodology text for the SLA ID, falling back to the
// default when the ID is unknown or the file is unavailable.
func (d *Descriptions) ForSLA(id int) string {
	d.once.Do(d.load)
	if text, ok := d.texts[id]; ok {
		return text
	}
	return defaultMethodology
}

func (d *Descriptions) load() {
	d.texts = make(map[int]string)
	if d.path == "" {
		return
	}
	log := logging.Component("render")

	f, err := os.Open(d.path)
	if err != nil {
		log.Warn("methodology descriptions unavailable, using default", "path", d.path, "error", err)
		return
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		log.Warn("methodology descriptions unreadable, using default", "path", d.path, "error", err)
		return
	}

	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		idRaw := strings.TrimSpace(row[0])
		id, err := strconv.Atoi(idRaw)
		if err != nil {
			// Header row or junk; skip silently on the first line only.
			if i > 0 {
				log.Warn("skipping methodology row with bad sla id", "value", idRaw)
			}
			continue
		}
		d.texts[id] = strings.TrimSpace(row[1])
	}
	log.Info("loaded methodology descriptions", "count", len(d.texts), "path", d.path)
}
