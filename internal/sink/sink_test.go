package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"eci-results-crawler/internal/models"
)

func TestWriteDatasetToLocalPath(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "election_results.csv")

	d, err := Open(ctx, path)
	require.NoError(t, err)
	defer d.Close()

	ds := models.NewResultDataset()
	require.NoError(t, ds.Append(models.ResultRecord{
		Key:              models.RegionKey{Kind: models.State, RegionCode: 1, ConstituencyNumber: 2},
		ConstituencyName: "Srikakulam",
		Row:              models.Row{{Column: "Party", Value: "TDP"}},
	}))
	require.NoError(t, d.WriteDataset(ctx, ds))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"constituency_name,region_code,constituency_number,region_kind,Party\nSrikakulam,1,2,STATE,TDP\n",
		string(data))
}

func TestAcceptedKeysCompressedRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "valid_urls.csv.zst")
	keys := []models.AcceptedKey{
		{Key: models.RegionKey{Kind: models.UnionTerritory, RegionCode: 1, ConstituencyNumber: 1}, URL: "https://host/U011.htm"},
	}

	d, err := Open(ctx, "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	require.NoError(t, d.WriteAcceptedKeys(ctx, keys))
	got, err := d.ReadAcceptedKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, keys, got)
	require.NoError(t, d.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()
	buf := new(strings.Builder)
	_, err = zr.WriteTo(buf)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(buf.String(), "region_code,constituency_number,region_kind,resolved_url\n"))
}

func TestOpenRejectsUnknownFormat(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "results.xlsx"))
	require.Error(t, err)
}
