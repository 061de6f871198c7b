// Package session tracks an opened experiment and lazily loads the data files
// its parameter file lists, keeping a bounded number of each kind in memory.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chrissnell/spmanalyzer/internal/metrics"
	"github.com/chrissnell/spmanalyzer/pkg/cits"
	"github.com/chrissnell/spmanalyzer/pkg/spmfile"
	"github.com/chrissnell/spmanalyzer/pkg/sts"
	"github.com/chrissnell/spmanalyzer/pkg/topo"
	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound is returned for a file key the experiment does not list.
	ErrNotFound = errors.New("file not found")
	// ErrWrongKind is returned when a key names a file of another kind.
	ErrWrongKind = errors.New("wrong file kind")
)

// Kind classifies the data files of an experiment.
type Kind string

const (
	KindTopography Kind = "topography"
	KindCITS       Kind = "cits"
	KindSTS        Kind = "sts"
)

// FileInfo describes one data file of the experiment.
type FileInfo struct {
	Key        string `json:"key"`
	FileName   string `json:"filename"`
	Kind       Kind   `json:"kind"`
	SignalType string `json:"signal_type"`
	Direction  string `json:"direction,omitempty"`
	Caption    string `json:"caption"`
	Loaded     bool   `json:"loaded"`
}

// Session is an opened experiment. It is safe for concurrent use; loaded
// images and cubes are shared between callers and must not be modified.
type Session struct {
	ID       string
	OpenedAt time.Time

	exp    *spmfile.Experiment
	logger *zap.SugaredLogger

	ints map[string]spmfile.IntDesc
	dats map[string]spmfile.DatDesc
	kind map[string]Kind

	topo  *lru.Cache[string, *topo.Image]
	cits  *lru.Cache[string, *spmfile.DatResult]
	sts   *lru.Cache[string, *spmfile.DatResult]
	loads singleflight.Group
}

// Open parses the parameter file at txtPath and indexes the files it lists by
// file stem. Nothing else is read until a file is requested. Each kind keeps
// at most cacheSize files loaded.
func Open(txtPath string, cacheSize int, logger *zap.SugaredLogger) (*Session, error) {
	exp, err := spmfile.ParseTxtFile(txtPath)
	if err != nil {
		return nil, err
	}
	return newSession(exp, cacheSize, logger)
}

func newSession(exp *spmfile.Experiment, cacheSize int, logger *zap.SugaredLogger) (*Session, error) {
	if cacheSize < 1 {
		return nil, fmt.Errorf("cache size must be at least 1, got %d", cacheSize)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Session{
		OpenedAt: time.Now(),
		exp:      exp,
		logger:   logger,
		ints:     map[string]spmfile.IntDesc{},
		dats:     map[string]spmfile.DatDesc{},
		kind:     map[string]Kind{},
	}

	var err error
	if s.topo, err = lru.New[string, *topo.Image](cacheSize); err != nil {
		return nil, err
	}
	if s.cits, err = lru.New[string, *spmfile.DatResult](cacheSize); err != nil {
		return nil, err
	}
	if s.sts, err = lru.New[string, *spmfile.DatResult](cacheSize); err != nil {
		return nil, err
	}

	for _, d := range exp.IntFiles {
		key := stem(d.FileName)
		if _, dup := s.kind[key]; dup {
			logger.Warnf("skipping %s: key %q already registered", d.FileName, key)
			continue
		}
		s.ints[key] = d
		s.kind[key] = KindTopography
	}
	for _, d := range exp.DatFiles {
		key := stem(d.FileName)
		if _, dup := s.kind[key]; dup {
			logger.Warnf("skipping %s: key %q already registered", d.FileName, key)
			continue
		}
		s.dats[key] = d
		if d.Mode == spmfile.ModeCITS {
			s.kind[key] = KindCITS
		} else {
			s.kind[key] = KindSTS
		}
	}

	logger.Infow("opened experiment",
		"name", exp.Name,
		"topography", len(s.ints),
		"spectroscopy", len(s.dats),
	)
	return s, nil
}

func stem(name string) string {
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

// Name returns the experiment name.
func (s *Session) Name() string { return s.exp.Name }

// Path returns the parameter file path.
func (s *Session) Path() string { return s.exp.Path }

// ScanParameters returns the scan settings of the experiment.
func (s *Session) ScanParameters() spmfile.ScanParameters { return s.exp.Scan }

// Params returns a copy of the raw parameter map.
func (s *Session) Params() map[string]string {
	out := make(map[string]string, len(s.exp.Params))
	for k, v := range s.exp.Params {
		out[k] = v
	}
	return out
}

// Kind reports the kind of the file registered under key.
func (s *Session) Kind(key string) (Kind, error) {
	k, ok := s.kind[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return k, nil
}

func (s *Session) expect(key string, want Kind) error {
	k, err := s.Kind(key)
	if err != nil {
		return err
	}
	if k != want {
		return fmt.Errorf("%w: %q is %s, not %s", ErrWrongKind, key, k, want)
	}
	return nil
}

// Topography returns the image registered under key, loading it on first use.
func (s *Session) Topography(key string) (*topo.Image, error) {
	if err := s.expect(key, KindTopography); err != nil {
		return nil, err
	}
	if img, ok := s.topo.Get(key); ok {
		metrics.CacheHit(string(KindTopography))
		return img, nil
	}
	metrics.CacheMiss(string(KindTopography))

	v, err, _ := s.loads.Do(key, func() (any, error) {
		if img, ok := s.topo.Peek(key); ok {
			return img, nil
		}
		start := time.Now()
		img, err := spmfile.ReadIntFile(s.exp.Dir(), s.ints[key], s.exp.Scan)
		if err != nil {
			return nil, err
		}
		if s.topo.Add(key, img) {
			metrics.CacheEviction(string(KindTopography))
		}
		s.logger.Debugf("loaded topography %s in %v", key, time.Since(start))
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*topo.Image), nil
}

// Dat returns the decoded spectroscopy table registered under key.
func (s *Session) Dat(key string) (*spmfile.DatResult, error) {
	k, err := s.Kind(key)
	if err != nil {
		return nil, err
	}
	cache := s.sts
	if k == KindCITS {
		cache = s.cits
	} else if k != KindSTS {
		return nil, fmt.Errorf("%w: %q is %s, not spectroscopy", ErrWrongKind, key, k)
	}

	if res, ok := cache.Get(key); ok {
		metrics.CacheHit(string(k))
		return res, nil
	}
	metrics.CacheMiss(string(k))

	v, err, _ := s.loads.Do(key, func() (any, error) {
		if res, ok := cache.Peek(key); ok {
			return res, nil
		}
		start := time.Now()
		res, err := spmfile.ReadDatFile(s.exp.Dir(), s.dats[key], s.exp.Scan)
		if err != nil {
			return nil, err
		}
		if cache.Add(key, res) {
			metrics.CacheEviction(string(k))
		}
		s.logger.Debugf("loaded %s table %s in %v", k, key, time.Since(start))
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*spmfile.DatResult), nil
}

// Cube returns the CITS cube registered under key.
func (s *Session) Cube(key string) (*cits.DataCube, error) {
	if err := s.expect(key, KindCITS); err != nil {
		return nil, err
	}
	res, err := s.Dat(key)
	if err != nil {
		return nil, err
	}
	return res.Cube, nil
}

// STS returns the point spectra registered under key.
func (s *Session) STS(key string) (*sts.Data, error) {
	if err := s.expect(key, KindSTS); err != nil {
		return nil, err
	}
	res, err := s.Dat(key)
	if err != nil {
		return nil, err
	}
	return res.STS, nil
}

// Unload drops key from memory. It reports whether the file was loaded.
func (s *Session) Unload(key string) bool {
	switch s.kind[key] {
	case KindTopography:
		return s.topo.Remove(key)
	case KindCITS:
		return s.cits.Remove(key)
	case KindSTS:
		return s.sts.Remove(key)
	}
	return false
}

// UnloadAll drops every loaded file.
func (s *Session) UnloadAll() {
	s.topo.Purge()
	s.cits.Purge()
	s.sts.Purge()
}

// Loaded returns the keys currently held in memory, sorted.
func (s *Session) Loaded() []string {
	keys := append(s.topo.Keys(), s.cits.Keys()...)
	keys = append(keys, s.sts.Keys()...)
	sort.Strings(keys)
	return keys
}

func (s *Session) isLoaded(key string, k Kind) bool {
	switch k {
	case KindTopography:
		return s.topo.Contains(key)
	case KindCITS:
		return s.cits.Contains(key)
	default:
		return s.sts.Contains(key)
	}
}

// Available lists every registered file, sorted by key.
func (s *Session) Available() []FileInfo {
	out := make([]FileInfo, 0, len(s.kind))
	for key, k := range s.kind {
		info := FileInfo{Key: key, Kind: k, Loaded: s.isLoaded(key, k)}
		if k == KindTopography {
			d := s.ints[key]
			info.FileName, info.SignalType, info.Direction, info.Caption = d.FileName, d.SignalType, d.Direction, d.Caption
		} else {
			d := s.dats[key]
			info.FileName, info.SignalType, info.Direction, info.Caption = d.FileName, d.SignalType, d.Direction, d.Caption
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// FindBySignalType returns the files recording signal, case-insensitively.
func (s *Session) FindBySignalType(signal string) []FileInfo {
	var out []FileInfo
	for _, f := range s.Available() {
		if strings.EqualFold(f.SignalType, signal) {
			out = append(out, f)
		}
	}
	return out
}

// FindByDirection returns the files scanned in direction (Fwd or Bwd).
func (s *Session) FindByDirection(direction string) []FileInfo {
	var out []FileInfo
	for _, f := range s.Available() {
		if f.Direction != "" && strings.EqualFold(f.Direction, direction) {
			out = append(out, f)
		}
	}
	return out
}

// MemoryInfo reports the approximate memory held by loaded files.
type MemoryInfo struct {
	Bytes       int64          `json:"bytes"`
	Human       string         `json:"human"`
	ByKind      map[Kind]int64 `json:"by_kind"`
	LoadedFiles int            `json:"loaded_files"`
}

// MemoryInfo sums the data held by every loaded file.
func (s *Session) MemoryInfo() MemoryInfo {
	info := MemoryInfo{ByKind: map[Kind]int64{}}
	for _, key := range s.topo.Keys() {
		if img, ok := s.topo.Peek(key); ok {
			cols, rows := img.Size()
			info.ByKind[KindTopography] += int64(cols*rows) * 8
			info.LoadedFiles++
		}
	}
	for _, key := range s.cits.Keys() {
		if res, ok := s.cits.Peek(key); ok && res.Cube != nil {
			info.ByKind[KindCITS] += res.Cube.SizeBytes()
			info.LoadedFiles++
		}
	}
	for _, key := range s.sts.Keys() {
		if res, ok := s.sts.Peek(key); ok && res.STS != nil {
			info.ByKind[KindSTS] += int64(len(res.STS.Values)*res.STS.NPoints()) * 8
			info.LoadedFiles++
		}
	}
	for _, b := range info.ByKind {
		info.Bytes += b
	}
	info.Human = humanize.IBytes(uint64(info.Bytes))
	return info
}

// Summary is a JSON-friendly overview of a session.
type Summary struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Path        string                 `json:"path"`
	OpenedAt    time.Time              `json:"opened_at"`
	Opened      string                 `json:"opened"`
	Scan        spmfile.ScanParameters `json:"scan"`
	Files       map[Kind]int           `json:"files"`
	SignalTypes []string               `json:"signal_types"`
	Loaded      []string               `json:"loaded"`
	Memory      MemoryInfo             `json:"memory"`
}

// Summary describes the session.
func (s *Session) Summary() Summary {
	files := map[Kind]int{}
	for _, k := range s.kind {
		files[k]++
	}
	return Summary{
		ID:          s.ID,
		Name:        s.exp.Name,
		Path:        s.exp.Path,
		OpenedAt:    s.OpenedAt,
		Opened:      humanize.Time(s.OpenedAt),
		Scan:        s.exp.Scan,
		Files:       files,
		SignalTypes: s.exp.SignalTypes,
		Loaded:      s.Loaded(),
		Memory:      s.MemoryInfo(),
	}
}
