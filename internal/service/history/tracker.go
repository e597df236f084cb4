package history

// DefaultMaxPoints — сколько последних цен хранится на символ.
const DefaultMaxPoints = 120

// Tracker — ограниченная история цен по символам.
// Не потокобезопасен: синхронизацию обеспечивает владелец (dashboard.State).
type Tracker struct {
	max    int
	series map[string][]float64
}

func NewTracker(maxPoints int) *Tracker {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Tracker{
		max:    maxPoints,
		series: make(map[string][]float64),
	}
}

// Record — добавить цену и отрезать самые старые точки сверх лимита.
func (t *Tracker) Record(symbol string, price float64) {
	s := append(t.series[symbol], price)
	if extra := len(s) - t.max; extra > 0 {
		// копируем, чтобы не держать растущий backing array
		s = append(make([]float64, 0, t.max), s[extra:]...)
	}
	t.series[symbol] = s
}

// Seed — начальная история (например, из архива). Порядок хронологический.
func (t *Tracker) Seed(symbol string, prices []float64) {
	for _, p := range prices {
		t.Record(symbol, p)
	}
}

// Get — копия истории; nil, если по символу ещё ничего не пришло.
func (t *Tracker) Get(symbol string) []float64 {
	s, ok := t.series[symbol]
	if !ok {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Len — число точек по символу.
func (t *Tracker) Len(symbol string) int {
	return len(t.series[symbol])
}

func (t *Tracker) MaxPoints() int { return t.max }
