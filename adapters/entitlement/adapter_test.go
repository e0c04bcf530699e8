package entitlement

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<licensefile>
  <license>
    <details>
      <detail name="release" value="R520"/>
      <detail name="product" value="PKS"/>
      <detail name="customer" value="Marathon Petroleum Company"/>
      <detail name="generated" value="2025-03-01"/>
    </details>
    <options>
      <option name="PROCESSPOINTS" value="500"/>
      <option name="STATIONS" value="12"/>
      <option name="SCADAPOINTS" value="0"/>
    </options>
  </license>
</licensefile>`

func writeLicense(t *testing.T, root, cluster, folder, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, cluster, folder)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractFile(t *testing.T) {
	root := t.TempDir()
	path := writeLicense(t, root, "Carson", "ESVT0 M0614 60806",
		"M0614_Experion_x_60806_40.xml", sampleXML)

	res := New(nil).ExtractFile(path)
	require.True(t, res.OK(), "errors: %v", res.Errors)

	rec := res.Record
	assert.Equal(t, "Carson", rec.Cluster)
	assert.Equal(t, "M0614", rec.MSID)
	assert.Equal(t, "60806", rec.SystemNumber)
	assert.Equal(t, "ESVT0", rec.SystemName)
	assert.Equal(t, 40, rec.FileVersion)
	assert.Equal(t, "R520", rec.Release)
	assert.Equal(t, "PKS", rec.Product)
	assert.Equal(t, "Marathon Petroleum Company", rec.Customer)
	require.NotNil(t, rec.LicenseDate)
	assert.Equal(t, "2025-03-01", rec.LicenseDate.Format("2006-01-02"))
	assert.Equal(t, map[string]int{
		"PROCESSPOINTS": 500,
		"STATIONS":      12,
		"SCADAPOINTS":   0,
	}, rec.Licensed)
	assert.Equal(t, path, rec.SourcePath)
}

func TestExtractFileExtendedMSID(t *testing.T) {
	root := t.TempDir()
	path := writeLicense(t, root, "Wilmington", "HCU M13287-EX10 50215",
		"M13287-EX10_Experion_x_50215_7.xml", sampleXML)

	res := New(nil).ExtractFile(path)
	require.True(t, res.OK())
	assert.Equal(t, "M13287-EX10", res.Record.MSID)
	assert.Equal(t, "50215", res.Record.SystemNumber)
	assert.Equal(t, 7, res.Record.FileVersion)
}

func TestExtractFileMetadataFromFolderFallback(t *testing.T) {
	root := t.TempDir()
	// Filename carries no identifiers; the folder naming convention does.
	path := writeLicense(t, root, "Carson", "ALKY M0922 50215",
		"license.xml", sampleXML)

	res := New(nil).ExtractFile(path)
	require.True(t, res.OK())
	assert.Equal(t, "M0922", res.Record.MSID)
	assert.Equal(t, "50215", res.Record.SystemNumber)
	// No version suffix: defaults to 0 with a warning.
	assert.Equal(t, 0, res.Record.FileVersion)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtractFileMalformedXML(t *testing.T) {
	root := t.TempDir()
	path := writeLicense(t, root, "Carson", "ESVT0 M0614 60806",
		"M0614_x_60806_40.xml", "<licensefile><license>")

	res := New(nil).ExtractFile(path)
	assert.False(t, res.OK())
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "XML parse error")
}

func TestExtractFileMissingSections(t *testing.T) {
	root := t.TempDir()
	path := writeLicense(t, root, "Carson", "ESVT0 M0614 60806",
		"M0614_x_60806_40.xml",
		"<licensefile><license><details/></license></licensefile>")

	res := New(nil).ExtractFile(path)
	assert.False(t, res.OK())
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "missing <options>")
}

func TestExtractDirOrderedAndFaultTolerant(t *testing.T) {
	root := t.TempDir()
	writeLicense(t, root, "Carson", "ESVT0 M0614 60806",
		"M0614_x_60806_40.xml", sampleXML)
	writeLicense(t, root, "Carson", "ALKY M0922 50215",
		"M0922_x_50215_3.xml", "not xml at all")
	writeLicense(t, root, "Wilmington", "HCU M0700 70001",
		"M0700_x_70001_2.xml", sampleXML)

	results, err := New(nil).ExtractDir(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Ordered by path regardless of extraction concurrency.
	assert.Contains(t, results[0].Path, "M0922")
	assert.Contains(t, results[1].Path, "M0614")
	assert.Contains(t, results[2].Path, "M0700")

	// The broken file failed alone.
	assert.False(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.True(t, results[2].OK())
}
