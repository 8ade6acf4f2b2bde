package lodstream

import (
	"time"

	"github.com/viant/lodstream/format/mipchain"
	"github.com/viant/lodstream/format/pop"
	"github.com/viant/lodstream/parser"
	"github.com/viant/lodstream/service/dao"
	"github.com/viant/lodstream/service/dao/criteria"
)

// StatusFailed is the status of an asset whose parser reported an error.
const StatusFailed = "failed"

// Asset is an opened streamed asset.
type Asset struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	Extension uint16         `json:"extension"`
	Format    string         `json:"format"`
	Name      string         `json:"name,omitempty"`
	OpenedAt  time.Time      `json:"openedAt"`
	Err       error          `json:"-"`
	Parser    *parser.Parser `json:"-"`
}

// Status returns the parser stage name, or StatusFailed after an error.
func (a *Asset) Status() string {
	if a.Err != nil {
		return StatusFailed
	}
	return a.Parser.State().String()
}

// matchAsset filters assets by the Status, Format and Source parameters.
func matchAsset(a *Asset, parameters []*dao.Parameter) bool {
	return criteria.Matches("Status", a.Status(), parameters) &&
		criteria.Matches("Format", a.Format, parameters) &&
		criteria.Matches("Source", a.Source, parameters)
}

// FormatFactory creates the format decoding one asset.
type FormatFactory func() parser.Format

type formatEntry struct {
	name    string
	factory FormatFactory
}

func defaultFormats() map[uint16]formatEntry {
	return map[uint16]formatEntry{
		pop.Extension:      {name: "pop", factory: func() parser.Format { return pop.New() }},
		mipchain.Extension: {name: "mipchain", factory: func() parser.Format { return mipchain.New() }},
	}
}
