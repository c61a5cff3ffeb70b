// Package contract models the on-chain oracle storage contract: the
// {price, timestamp, confidence} map per symbol, oracle/TEE account
// access control, the dual-witness check, and the update preconditions.
// It never throws — every admin and update operation reports failure
// through its return value (false, or zero applied entries for
// UpdatePriceBatch), and a failed operation emits no event.
package contract

import (
	"math/big"
	"sync"
	"time"
)

// Event is one emitted contract event. Attributes preserve field order via
// a parallel slice rather than a map, mirroring how the real VM emits
// positional notification arguments.
type Event struct {
	Type  string
	Attrs []Attr
}

type Attr struct {
	Key   string
	Value string
}

func newEvent(eventType string, attrs ...Attr) Event {
	return Event{Type: eventType, Attrs: attrs}
}

func attr(key, value string) Attr { return Attr{Key: key, Value: value} }

// storedPrice is the on-chain {price, timestamp, confidence} triple.
type storedPrice struct {
	price      *big.Int
	timestamp  int64
	confidence int
}

// Contract is an in-memory, mutex-guarded model of the on-chain storage
// layout: three keyed maps (the price/timestamp/confidence triple per
// symbol, the oracle set, and the TEE-account set) plus the singleton
// fields.
type Contract struct {
	mu sync.Mutex

	prices map[string]storedPrice

	oracles     map[string]bool
	teeAccounts map[string]bool

	owner                   string
	paused                  bool
	initialized             bool
	reentrancyGuard         bool
	circuitBreakerTriggered bool
	minOracles              int
	oracleCount             int

	events []Event
	now    func() time.Time
}

// New returns an uninitialized Contract. Initialize must be called before
// any price update will be accepted.
func New() *Contract {
	return &Contract{
		prices:      make(map[string]storedPrice),
		oracles:     make(map[string]bool),
		teeAccounts: make(map[string]bool),
		now:         time.Now,
	}
}

// DrainEvents returns and clears the events emitted so far, in emission
// order.
func (c *Contract) DrainEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func (c *Contract) emit(e Event) { c.events = append(c.events, e) }

// Initialize sets the owner and baseline singleton state. It succeeds
// exactly once; subsequent calls return false without changing state.
func (c *Contract) Initialize(owner string, initialTeeAccount string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return false
	}
	c.owner = owner
	c.minOracles = 1
	c.oracleCount = 0
	c.circuitBreakerTriggered = false
	c.initialized = true
	c.emit(newEvent("Initialized", attr("owner", owner)))
	if initialTeeAccount != "" {
		c.teeAccounts[initialTeeAccount] = true
		c.emit(newEvent("TeeAccountAdded", attr("address", initialTeeAccount)))
	}
	return true
}

// ChangeOwner requires the current owner to authorize the change.
func (c *Contract) ChangeOwner(caller, newOwner string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) || newOwner == "" {
		return false
	}
	old := c.owner
	c.owner = newOwner
	c.emit(newEvent("OwnerChanged", attr("old", old), attr("new", newOwner)))
	return true
}

func (c *Contract) SetPaused(caller string, paused bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) {
		return false
	}
	c.paused = paused
	c.emit(newEvent("ContractPaused", attr("paused", boolStr(paused))))
	return true
}

func (c *Contract) SetCircuitBreaker(caller string, triggered bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) {
		return false
	}
	c.circuitBreakerTriggered = triggered
	c.emit(newEvent("CircuitBreakerTriggered", attr("triggered", boolStr(triggered))))
	return true
}

func (c *Contract) SetMinOracles(caller string, n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) || n < 1 {
		return false
	}
	c.minOracles = n
	c.emit(newEvent("MinOraclesUpdated", attr("minOracles", itoa(n))))
	return true
}

// Update models the contract's self-upgrade entry point: nef/manifest are
// opaque blobs whose only observable effect here is the emitted event
// carrying a content hash.
func (c *Contract) Update(caller string, nef, manifest, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) {
		return false
	}
	c.emit(newEvent("ContractUpgraded", attr("hash", contentHash(nef, manifest, data))))
	return true
}

func (c *Contract) AddOracle(caller, addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) || addr == "" || c.oracles[addr] {
		return false
	}
	c.oracles[addr] = true
	c.oracleCount++
	c.emit(newEvent("OracleAdded", attr("address", addr)))
	return true
}

func (c *Contract) RemoveOracle(caller, addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) || !c.oracles[addr] {
		return false
	}
	delete(c.oracles, addr)
	c.oracleCount--
	c.emit(newEvent("OracleRemoved", attr("address", addr)))
	return true
}

func (c *Contract) AddTeeAccount(caller, addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) || addr == "" || c.teeAccounts[addr] {
		return false
	}
	c.teeAccounts[addr] = true
	c.emit(newEvent("TeeAccountAdded", attr("address", addr)))
	return true
}

func (c *Contract) RemoveTeeAccount(caller, addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isOwnerLocked(caller) || !c.teeAccounts[addr] {
		return false
	}
	delete(c.teeAccounts, addr)
	c.emit(newEvent("TeeAccountRemoved", attr("address", addr)))
	return true
}

// PriceUpdate is one entry of an UpdatePriceBatch invocation.
type PriceUpdate struct {
	Symbol     string
	Price      *big.Int
	Timestamp  int64
	Confidence int
}

// UpdatePrice applies a single price update. signers must carry at least
// two distinct "called-by-entry" addresses: one an oracle, one a TEE
// account. Every precondition miss returns false without mutating state.
func (c *Contract) UpdatePrice(signers []string, symbol string, price *big.Int, timestamp int64, confidence int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enterLocked() {
		return false
	}
	defer c.exitLocked()

	ok := c.checkDualWitnessLocked(signers) &&
		c.applyPreconditionsAndUpdateLocked(symbol, price, timestamp, confidence)
	return ok
}

// UpdatePriceBatch applies every entry independently: a precondition miss
// on one entry skips just that entry, the rest of the batch still applies.
// The dual-witness check applies once to the whole invocation. Returns the
// number of entries actually applied.
func (c *Contract) UpdatePriceBatch(signers []string, updates []PriceUpdate) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enterLocked() {
		return 0
	}
	defer c.exitLocked()

	if !c.checkDualWitnessLocked(signers) {
		return 0
	}

	applied := 0
	for _, u := range updates {
		if c.applyPreconditionsAndUpdateLocked(u.Symbol, u.Price, u.Timestamp, u.Confidence) {
			applied++
		}
	}
	return applied
}

// enterLocked/exitLocked implement the reentrancy guard. Callers must
// already hold c.mu.
func (c *Contract) enterLocked() bool {
	if c.reentrancyGuard {
		return false
	}
	c.reentrancyGuard = true
	return true
}

func (c *Contract) exitLocked() { c.reentrancyGuard = false }

// checkDualWitnessLocked requires at least two distinct signers such that
// one is a registered oracle and one is a registered TEE account. A
// single address satisfying both roles counts only once.
func (c *Contract) checkDualWitnessLocked(signers []string) bool {
	hasOracle, hasTee := false, false
	distinct := make(map[string]bool, len(signers))
	for _, s := range signers {
		distinct[s] = true
		if c.oracles[s] {
			hasOracle = true
		}
		if c.teeAccounts[s] {
			hasTee = true
		}
	}
	if len(distinct) < 2 {
		return false
	}
	return hasOracle && hasTee
}

// applyPreconditionsAndUpdateLocked evaluates the nine ordered
// preconditions and, if all pass, writes the new stored price and emits
// PriceUpdated. Callers must already hold c.mu and the dual-witness check
// must already have passed.
func (c *Contract) applyPreconditionsAndUpdateLocked(symbol string, price *big.Int, timestamp int64, confidence int) bool {
	if !c.initialized || c.paused {
		return false
	}
	if c.circuitBreakerTriggered {
		return false
	}
	if c.oracleCount < c.minOracles {
		return false
	}
	if symbol == "" || price == nil || price.Sign() <= 0 || timestamp <= 0 || confidence < 0 || confidence > 100 {
		return false
	}
	if confidence < 50 {
		return false
	}
	if c.now().Unix()-timestamp > 3600 {
		return false
	}
	prior, hadPrior := c.prices[symbol]
	if hadPrior && timestamp <= prior.timestamp {
		return false
	}
	if hadPrior && prior.price.Sign() > 0 {
		if !withinDeviationLocked(prior.price, price) && confidence < 100 {
			return false
		}
	}

	c.prices[symbol] = storedPrice{price: price, timestamp: timestamp, confidence: confidence}
	c.emit(newEvent("PriceUpdated",
		attr("symbol", symbol),
		attr("price", price.String()),
		attr("timestamp", itoa64(timestamp)),
		attr("confidence", itoa(confidence)),
	))
	return true
}

// withinDeviationLocked reports whether the change from old to new stays
// within the 10% deviation guard.
func withinDeviationLocked(old, new_ *big.Int) bool {
	diff := new(big.Int).Sub(new_, old)
	diff.Abs(diff)
	scaled := new(big.Int).Mul(diff, big.NewInt(100))
	limit := new(big.Int).Mul(old, big.NewInt(10))
	return scaled.Cmp(limit) <= 0
}

// --- Read side (unauthenticated); missing symbols return zero values. ---

func (c *Contract) GetPrice(symbol string) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.prices[symbol]; ok {
		return new(big.Int).Set(p.price)
	}
	return big.NewInt(0)
}

func (c *Contract) GetTimestamp(symbol string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prices[symbol].timestamp
}

func (c *Contract) GetConfidenceScore(symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prices[symbol].confidence
}

func (c *Contract) GetPriceData(symbol string) (price *big.Int, timestamp int64, confidence int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[symbol]
	if !ok {
		return big.NewInt(0), 0, 0
	}
	return new(big.Int).Set(p.price), p.timestamp, p.confidence
}

func (c *Contract) IsOracle(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oracles[addr]
}

func (c *Contract) IsTeeAccount(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.teeAccounts[addr]
}

func (c *Contract) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Contract) IsCircuitBreakerTriggered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.circuitBreakerTriggered
}

func (c *Contract) GetOracleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oracleCount
}

func (c *Contract) GetMinOracles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minOracles
}

func (c *Contract) GetOwner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}

func (c *Contract) isOwnerLocked(caller string) bool {
	return c.initialized && caller == c.owner
}
