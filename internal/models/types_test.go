package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegionKind(t *testing.T) {
	require.Equal(t, "S", State.URLCode())
	require.Equal(t, "U", UnionTerritory.URLCode())
	require.Equal(t, "", RegionKind("X").URLCode())

	k, err := ParseRegionKind("UNION_TERRITORY")
	require.NoError(t, err)
	require.Equal(t, UnionTerritory, k)
	k, err = ParseRegionKind("S")
	require.NoError(t, err)
	require.Equal(t, State, k)
	_, err = ParseRegionKind("county")
	require.Error(t, err)
}

func TestRegionKeyString(t *testing.T) {
	require.Equal(t, "STATE/07/3", RegionKey{Kind: State, RegionCode: 7, ConstituencyNumber: 3}.String())
}

func TestRecordFields(t *testing.T) {
	rec := ResultRecord{
		Key:              RegionKey{Kind: UnionTerritory, RegionCode: 3, ConstituencyNumber: 1},
		ConstituencyName: "Chandigarh",
		Row:              Row{{"Candidate", "X"}, {"region_code", "spoofed"}, {"Party", "Y"}},
	}
	require.Equal(t, Row{
		{ColConstituencyName, "Chandigarh"},
		{ColRegionCode, "3"},
		{ColConstituencyNumber, "1"},
		{ColRegionKind, "UNION_TERRITORY"},
		{"Candidate", "X"},
		{"Party", "Y"},
	}, rec.Fields())
}

func TestDatasetColumnsAreSparseUnion(t *testing.T) {
	ds := NewResultDataset()
	require.NoError(t, ds.Append(ResultRecord{Row: Row{{"Candidate", "a"}, {"Party", "b"}}}))
	require.NoError(t, ds.Append(ResultRecord{Row: Row{{"Candidate", "c"}, {"Postal Votes", "1"}}}))
	require.Equal(t, []string{
		ColConstituencyName, ColRegionCode, ColConstituencyNumber, ColRegionKind,
		"Candidate", "Party", "Postal Votes",
	}, ds.Columns())

	ds.Finalize()
	require.ErrorIs(t, ds.Append(ResultRecord{}), ErrDatasetFinalized)
	require.Equal(t, 2, ds.Len())
}
