package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// AtomicConfiguration describes one atomic structure: flattened x,y,z
// positions in atom order, one atomic number per atom, and a row-major
// 3x3 lattice matrix.
type AtomicConfiguration struct {
	AtomCount     uint32
	Positions     []float64
	AtomicNumbers []uint32
	Cell          []float64
}

// WorkItem is one unit of computation, identified by a stable ID shared
// across both execution paths.
type WorkItem struct {
	ID        string
	Structure AtomicConfiguration
}

// CalculationResult carries the scalar energy and the flattened forces of
// one evaluated configuration.
type CalculationResult struct {
	Energy float64
	Forces []float64
}

// Outcome is the terminal state of one WorkItem on one execution path:
// either a result or an error, never both, plus the wall-clock duration
// of the evaluation.
type Outcome struct {
	WorkID   string
	Endpoint string // empty for local execution
	Result   *CalculationResult
	Err      error
	Duration time.Duration
}

// OK reports whether the item completed successfully.
func (o Outcome) OK() bool { return o.Err == nil }

// Endpoint is one remote compute server address.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ParseEndpoint parses a "host:port" string.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid port in endpoint %q", s)
	}
	return Endpoint{Host: host, Port: port}, nil
}

// Pool is the ordered endpoint list; the index into it is the
// load-balancing key. It is read-only after construction.
type Pool []Endpoint

// Pick returns the endpoint for the work item at position i, by
// deterministic round-robin.
func (p Pool) Pick(i int) Endpoint {
	return p[i%len(p)]
}

// ParsePool builds a pool from positional "host:port" arguments.
func ParsePool(args []string) (Pool, error) {
	if len(args) == 0 {
		return nil, errors.New("no endpoints given")
	}
	pool := make(Pool, 0, len(args))
	for _, arg := range args {
		ep, err := ParseEndpoint(arg)
		if err != nil {
			return nil, err
		}
		pool = append(pool, ep)
	}
	return pool, nil
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the benchmark configuration, loaded from YAML with
// command-line overrides.
type Config struct {
	Workers           int      `yaml:"workers"`
	ConnectAttempts   int      `yaml:"connect_attempts"`
	ConnectRetryDelay Duration `yaml:"connect_retry_delay"`
	CallTimeout       Duration `yaml:"call_timeout"`
	Sleep             Duration `yaml:"sleep"`
	Supercell         int      `yaml:"supercell"`
	StructuresFile    string   `yaml:"structures_file"`
	LogLevel          string   `yaml:"log_level"`
	LogFile           string   `yaml:"log_file"`
	ChartFile         string   `yaml:"chart_file"`
	TimingsFile       string   `yaml:"timings_file"`
}
