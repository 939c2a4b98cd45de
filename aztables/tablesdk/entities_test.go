package tablesdk

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// account exercises every mapping feature: key roles with fallbacks,
// concurrency token, timestamp, implicit and renamed columns, JSON
// columns and soft deletion.
type account struct {
	Tenant   string    `tables:"partitionkey,default=SHARED"`
	ID       string    `tables:"rowkey,autogen"`
	Version  string    `tables:"etag"`
	Modified time.Time `tables:"timestamp"`

	Name    string `tables:"DisplayName"`
	Age     int
	Balance float64   `tables:"Balance"`
	Active  bool      `tables:"Active"`
	Owner   uuid.UUID `tables:"Owner"`
	Labels  []string  `tables:"Labels,json"`

	Internal string `tables:"-"`
}

func (account) TableName() string { return "accounts" }
func (account) SoftDelete() bool  { return true }

// device is the minimal hard-delete shape: explicit keys, no fallbacks.
type device struct {
	Site   string `tables:"partitionkey"`
	Serial string `tables:"rowkey"`
	Model  string `tables:"Model"`
}

func (device) TableName() string { return "devices" }

// severity carries its own textual format.
type severity int

func (s severity) MarshalText() ([]byte, error) {
	return []byte("sev" + strconv.Itoa(int(s))), nil
}

func (s *severity) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(strings.TrimPrefix(string(text), "sev"))
	if err != nil {
		return fmt.Errorf("bad severity %q", text)
	}
	*s = severity(n)
	return nil
}
