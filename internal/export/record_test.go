package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRecord() Record {
	return Record{
		X: 500050, Y: 4999950, Resolution: 100,
		Slots: []Slot{
			{Name: "cellA", AntennaID: 101, PowerDBm: -61.537, Model: "hata_urban"},
			{Name: "", AntennaID: 0, PowerDBm: -999, Model: ""},
		},
		Quality: -3.01,
	}
}

func TestFormatLine(t *testing.T) {
	got := sampleRecord().FormatLine()
	want := "500050,4999950,100,'cellA',101,-61.54,'hata_urban','',0,-999.00,'',-3.01"
	assert.Equal(t, want, got)
}

func TestColumns(t *testing.T) {
	got := columns(2)
	want := []string{"x", "y", "resolution", "cell1", "id1", "Pr1", "model1", "cell2", "id2", "Pr2", "model2", "EcN0"}
	assert.Equal(t, want, got)
}

func TestArgsMatchColumns(t *testing.T) {
	r := sampleRecord()
	args := r.args()
	assert.Len(t, args, len(columns(len(r.Slots))))
	assert.Equal(t, 500050, args[0])
	assert.Equal(t, "cellA", args[3])
	assert.Equal(t, -3.01, args[len(args)-1])
}

func TestCreateTableSQL(t *testing.T) {
	sql := createTableSQL("coverage", 2)
	assert.True(t, strings.HasPrefix(sql, "CREATE TABLE coverage ("))
	for _, col := range []string{
		"x INTEGER", "resolution INTEGER",
		"cell1 VARCHAR(32)", "id1 INTEGER", "Pr1 REAL", "model1 VARCHAR(128)",
		"cell2 VARCHAR(32)", "Pr2 REAL",
		"EcN0 REAL",
	} {
		assert.Contains(t, sql, col)
	}
	assert.NotContains(t, sql, "cell3")
}
