// Package zonestats implements domain.ZoneStats against the legacy binary
// zone-key/zone-stat file pair: a 360x180 grid of longitude x
// colatitude cells, each either null or pointing at a record in a sparse
// statistics table (meanDepth, minDepth, maxDepth). A gob-serialized cache
// is kept alongside the source files and is regenerated whenever either
// source file's mtime moves past the cache's.
package zonestats

import (
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	gridLonCells   = 360
	gridColatCells = 180

	// The zone-stat file's first 4 bytes are a historical-year count,
	// the remaining 36 are reserved/padding, so the record table begins
	// at byte offset 40.
	zoneStatHeaderBytes = 40

	// nullMinDepthKm: a record whose minDepth is at or beyond this is
	// treated as carrying no usable prior.
	nullMinDepthKm = 900.0
)

// record is one sparse-table entry: a reference count (unused by the
// prior calculation itself, kept for parity with the source format) plus
// nine float32 statistics, of which only percentFree/meanDepth/minDepth/
// maxDepth are consumed here.
type record struct {
	Count       int32
	PercentFree float32
	MeanDepth   float32
	MinDepth    float32
	MaxDepth    float32
	Reserved    [5]float32
}

// Table is the immutable, process-wide loaded zone-statistics table.
type Table struct {
	zoneIndex [gridLonCells * gridColatCells]int32 // -1 means no record
	records   []record
}

// cacheEnvelope is the gob-serialized on-disk cache payload.
type cacheEnvelope struct {
	KeyModTime  int64
	StatModTime int64
	ZoneIndex   [gridLonCells * gridColatCells]int32
	Records     []record
}

// Loader lazily (re)builds a Table from the zone-key/zone-stat source
// files, regenerating its gob cache under an exclusive lock whenever the
// sources are newer, and serving reads under a shared lock otherwise.
type Loader struct {
	zoneKeyPath  string
	zoneStatPath string
	cachePath    string

	mu    sync.RWMutex
	table *Table
}

// NewLoader constructs a Loader for the given source/cache paths.
func NewLoader(zoneKeyPath, zoneStatPath, cachePath string) *Loader {
	return &Loader{zoneKeyPath: zoneKeyPath, zoneStatPath: zoneStatPath, cachePath: cachePath}
}

// DepthPrior implements domain.ZoneStats.
func (l *Loader) DepthPrior(lat, lon float64) (mean, spread float64, ok bool) {
	table, err := l.get()
	if err != nil {
		return 0, 0, false
	}
	return table.DepthPrior(lat, lon)
}

// get returns the cached Table, (re)loading it if the source files are
// newer than any previously built cache.
func (l *Loader) get() (*Table, error) {
	l.mu.RLock()
	if l.table != nil {
		t := l.table
		l.mu.RUnlock()
		return t, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.table != nil {
		return l.table, nil
	}

	table, err := l.loadOrRebuild()
	if err != nil {
		return nil, err
	}
	l.table = table
	return table, nil
}

func (l *Loader) loadOrRebuild() (*Table, error) {
	keyMod, err := modTime(l.zoneKeyPath)
	if err != nil {
		return nil, err
	}
	statMod, err := modTime(l.zoneStatPath)
	if err != nil {
		return nil, err
	}

	if env, err := readCache(l.cachePath); err == nil {
		if env.KeyModTime == keyMod.Unix() && env.StatModTime == statMod.Unix() {
			return &Table{zoneIndex: env.ZoneIndex, records: env.Records}, nil
		}
	}

	table, err := buildFromSource(l.zoneKeyPath, l.zoneStatPath)
	if err != nil {
		return nil, err
	}

	env := cacheEnvelope{
		KeyModTime:  keyMod.Unix(),
		StatModTime: statMod.Unix(),
		ZoneIndex:   table.zoneIndex,
		Records:     table.records,
	}
	if err := writeCache(l.cachePath, env); err != nil {
		// A failed cache write is not fatal: the in-memory table is still
		// usable this process, it will just rebuild again next start.
		return table, nil
	}
	return table, nil
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("zonestats: %w", err)
	}
	return info.ModTime(), nil
}

func readCache(path string) (cacheEnvelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return cacheEnvelope{}, err
	}
	defer f.Close()

	var env cacheEnvelope
	if err := gob.NewDecoder(f).Decode(&env); err != nil {
		return cacheEnvelope{}, err
	}
	return env, nil
}

func writeCache(path string, env cacheEnvelope) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(env)
}

// buildFromSource parses the zone-key (360*180 little-endian int32) and
// zone-stat (40-byte header + {int32, 9*float32} records) files.
func buildFromSource(zoneKeyPath, zoneStatPath string) (*Table, error) {
	keyRaw, err := os.ReadFile(zoneKeyPath)
	if err != nil {
		return nil, fmt.Errorf("zonestats: failed to read zone-key file: %w", err)
	}
	wantLen := gridLonCells * gridColatCells * 4
	if len(keyRaw) != wantLen {
		return nil, fmt.Errorf("zonestats: zone-key file has %d bytes, expected %d", len(keyRaw), wantLen)
	}

	var zoneIndex [gridLonCells * gridColatCells]int32
	for i := range zoneIndex {
		zoneIndex[i] = int32(binary.LittleEndian.Uint32(keyRaw[i*4 : i*4+4]))
	}

	statRaw, err := os.ReadFile(zoneStatPath)
	if err != nil {
		return nil, fmt.Errorf("zonestats: failed to read zone-stat file: %w", err)
	}
	if len(statRaw) < zoneStatHeaderBytes {
		return nil, fmt.Errorf("zonestats: zone-stat file shorter than header (%d bytes)", len(statRaw))
	}

	body := statRaw[zoneStatHeaderBytes:]
	const recordBytes = 4 + 9*4
	if len(body)%recordBytes != 0 {
		return nil, fmt.Errorf("zonestats: zone-stat body length %d not a multiple of record size %d", len(body), recordBytes)
	}

	n := len(body) / recordBytes
	records := make([]record, n)
	for i := 0; i < n; i++ {
		off := i * recordBytes
		rec := body[off : off+recordBytes]
		records[i] = record{
			Count:       int32(binary.LittleEndian.Uint32(rec[0:4])),
			PercentFree: readFloat32(rec[4:8]),
			MeanDepth:   readFloat32(rec[8:12]),
			MinDepth:    readFloat32(rec[12:16]),
			MaxDepth:    readFloat32(rec[16:20]),
			Reserved: [5]float32{
				readFloat32(rec[20:24]), readFloat32(rec[24:28]), readFloat32(rec[28:32]),
				readFloat32(rec[32:36]), readFloat32(rec[36:40]),
			},
		}
	}

	return &Table{zoneIndex: zoneIndex, records: records}, nil
}

func readFloat32(b []byte) float32 {
	bits := binary.LittleEndian.Uint32(b)
	return math.Float32frombits(bits)
}

// DepthPrior returns the Bayesian depth prior for the one-degree cell
// containing (lat, lon): mean is the cell's mean depth and spread is
// 0.75*(maxDepth-minDepth)/2. The DefaultDepthSE floor on that spread is
// applied by the Stepper, not here.
func (t *Table) DepthPrior(lat, lon float64) (mean, spread float64, ok bool) {
	lonIdx := int(lon+180) % gridLonCells
	if lonIdx < 0 {
		lonIdx += gridLonCells
	}
	colat := 90 - lat
	colatIdx := int(colat)
	if colatIdx < 0 {
		colatIdx = 0
	}
	if colatIdx >= gridColatCells {
		colatIdx = gridColatCells - 1
	}

	idx := colatIdx*gridLonCells + lonIdx
	recIdx := t.zoneIndex[idx]
	if recIdx < 0 || int(recIdx) >= len(t.records) {
		return 0, 0, false
	}

	rec := t.records[recIdx]
	if rec.PercentFree <= 0 || rec.MinDepth >= nullMinDepthKm {
		return 0, 0, false
	}

	spreadKm := 0.75 * (float64(rec.MaxDepth) - float64(rec.MinDepth)) / 2.0
	return float64(rec.MeanDepth), spreadKm, true
}
