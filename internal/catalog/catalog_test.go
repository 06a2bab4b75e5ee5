package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

func TestStripPointsSuffix(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "em dash with points", raw: "Trillion — 7 Points", want: "Trillion"},
		{name: "en dash singular", raw: "Biden – 1 point", want: "Biden"},
		{name: "hyphen no word", raw: "Fraud - 20", want: "Fraud"},
		{name: "trailing spaces", raw: "  Hoax -60 points   ", want: "Hoax"},
		{name: "no suffix", raw: "  Ballroom ", want: "Ballroom"},
		{name: "slash name kept", raw: "DEI / Woke — 26 Points", want: "DEI / Woke"},
		{name: "digits without dash kept", raw: "250", want: "250"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripPointsSuffix(tt.raw))
		})
	}
}

func TestTable_Classify(t *testing.T) {
	table := Default()

	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		wantName string
		wantCat  domain.Category
		wantPts  int
	}{
		{name: "say option", raw: "Trillion", wantOK: true, wantName: "Trillion", wantCat: domain.CategorySay, wantPts: 7},
		{name: "say option with suffix", raw: "Ethereum — 97 Points", wantOK: true, wantName: "Ethereum", wantCat: domain.CategorySay, wantPts: 97},
		{name: "mention option", raw: "Putin", wantOK: true, wantName: "Putin", wantCat: domain.CategoryMention, wantPts: 45},
		{name: "alias", raw: "Elon Musk — 76 Points", wantOK: true, wantName: "Elon / Musk", wantCat: domain.CategoryMention, wantPts: 76},
		{name: "alias into say", raw: "Woke / DEI", wantOK: true, wantName: "DEI / Woke", wantCat: domain.CategorySay, wantPts: 26},
		{name: "case sensitive", raw: "trillion", wantOK: false},
		{name: "unknown", raw: "Tariffs", wantOK: false},
		{name: "blank", raw: "   ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, ok := table.Classify(tt.raw)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantName, opt.Name)
			assert.Equal(t, tt.wantCat, opt.Category)
			assert.Equal(t, tt.wantPts, opt.PointValue)
		})
	}
}

func TestTable_ClassifyIsDeterministic(t *testing.T) {
	table := Default()
	inputs := []string{"Trillion", "Kash Patel - 69 points", "nope", "Newsom", ""}
	for _, in := range inputs {
		first, ok1 := table.Classify(table.Normalize(in))
		second, ok2 := table.Classify(table.Normalize(in))
		assert.Equal(t, ok1, ok2, in)
		assert.Equal(t, first, second, in)
	}
}

func TestTable_NormalizeUnknownReturnsTrimmed(t *testing.T) {
	table := Default()
	assert.Equal(t, "Something Else", table.Normalize("  Something Else — 3 Points "))
}

func TestNew_RejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name    string
		say     map[string]int
		mention map[string]int
		aliases map[string]string
		errPart string
	}{
		{
			name:    "shared name across categories",
			say:     map[string]int{"Obama": 5},
			mention: map[string]int{"Obama": 66},
			errPart: `option "Obama" defined in both`,
		},
		{
			name:    "non-positive points",
			say:     map[string]int{"Zero": 0},
			errPart: "non-positive points",
		},
		{
			name:    "dangling alias",
			say:     map[string]int{"Hoax": 60},
			aliases: map[string]string{"Fake": "Missing"},
			errPart: `targets unknown option "Missing"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.say, tt.mention, tt.aliases)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestTable_OptionsSortedAndPartitioned(t *testing.T) {
	table := Default()
	say := table.Options(domain.CategorySay)
	mention := table.Options(domain.CategoryMention)

	assert.Len(t, say, len(DefaultSay))
	assert.Len(t, mention, len(DefaultMention))
	assert.Equal(t, len(DefaultSay)+len(DefaultMention), table.Len())
	for i := 1; i < len(say); i++ {
		assert.Less(t, say[i-1].Name, say[i].Name)
	}
	for _, opt := range mention {
		assert.Equal(t, domain.CategoryMention, opt.Category)
	}
}
