package types

import "time"

// HTTPConfig holds shared HTTP settings used by backends that talk to a
// conversion service.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "word2pdf/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds retries on 429 and 503 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// Backend identifies the office engine that renders documents to PDF.
type Backend string

const (
	BackendAuto      Backend = "auto"
	BackendWord      Backend = "word"
	BackendSoffice   Backend = "soffice"
	BackendContainer Backend = "container"
	BackendGotenberg Backend = "gotenberg"
)

// Backends lists every selectable backend in auto-detection order.
var Backends = []Backend{BackendWord, BackendSoffice, BackendGotenberg, BackendContainer}

// ScanConfig holds settings for document discovery.
type ScanConfig struct {
	// Extensions lists the matched file extensions, compared case-insensitively
	// (default .docx and .doc).
	Extensions []string `json:"extensions" yaml:"extensions"`
}

// ConversionConfig holds settings for a conversion run.
type ConversionConfig struct {
	// Backend selects the office engine: auto, word, soffice, container, gotenberg.
	Backend Backend `json:"backend" yaml:"backend"`

	// OutputDir is the root of the mirrored PDF tree. Empty means
	// "<input>_pdf" next to the input directory.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Workers is the number of documents converted concurrently (default 1).
	Workers int `json:"workers" yaml:"workers"`

	// Timeout bounds a single document conversion (default 2m).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// SettleDelay is slept after each successful conversion (default 0).
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay"`

	// Force reconverts documents whose PDF is already up to date.
	Force bool `json:"force" yaml:"force"`

	// Verify checks every produced PDF opens and has pages.
	Verify bool `json:"verify" yaml:"verify"`

	// Strict adds full pdfcpu validation to Verify.
	Strict bool `json:"strict" yaml:"strict"`

	// MaxPDFSize rejects produced PDFs larger than this many bytes.
	MaxPDFSize int64 `json:"max_pdf_size" yaml:"max_pdf_size"`
}

// OfficeConfig holds settings for the local LibreOffice backend.
type OfficeConfig struct {
	// SofficePath overrides the soffice binary lookup.
	SofficePath string `json:"soffice_path,omitempty" yaml:"soffice_path,omitempty"`
}

// ContainerConfig holds settings for the containerised LibreOffice backend.
type ContainerConfig struct {
	// Image is the local image that provides soffice (default "libreoffice:latest").
	Image string `json:"image" yaml:"image"`
}

// GotenbergConfig holds settings for the Gotenberg HTTP backend.
type GotenbergConfig struct {
	HTTPConfig `yaml:",inline"`

	// URL is the Gotenberg base URL (e.g. "http://localhost:3000").
	URL string `json:"url" yaml:"url"`

	// Username and Password enable HTTP basic auth when Username is set.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"-" yaml:"-"`
}

// LedgerConfig holds settings for the conversion history database.
type LedgerConfig struct {
	// Path is the SQLite file (default ~/.config/word2pdf/ledger.db).
	Path string `json:"path" yaml:"path"`

	// Disabled turns history recording off.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// WatchConfig holds settings for watch mode.
type WatchConfig struct {
	// Debounce is how long a path must stay quiet before it is converted (default 2s).
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// Config groups every setting of the tool.
type Config struct {
	Scan       ScanConfig       `json:"scan" yaml:"scan"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Office     OfficeConfig     `json:"office" yaml:"office"`
	Container  ContainerConfig  `json:"container" yaml:"container"`
	Gotenberg  GotenbergConfig  `json:"gotenberg" yaml:"gotenberg"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`
	Watch      WatchConfig      `json:"watch" yaml:"watch"`
}
