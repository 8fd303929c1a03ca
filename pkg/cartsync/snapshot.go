package cartsync

// Line is one product in the cart. Display fields come from the catalog on
// every full reload; a line added optimistically carries zero values until
// that reload lands.
type Line struct {
	ProductRef  string  `json:"product_ref"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	DisplayName string  `json:"display_name"`
	ImageRef    string  `json:"image_ref"`
}

func (l Line) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// Snapshot is an ordered cart, at most one line per ProductRef. An empty
// snapshot always has nil Lines so snapshots compare with reflect.DeepEqual.
type Snapshot struct {
	Lines []Line `json:"lines"`
}

// NewSnapshot builds a snapshot from store rows. Rows with a non-positive
// quantity are dropped and duplicate refs are folded into the first one.
func NewSnapshot(lines []Line) Snapshot {
	var out []Line
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.ProductRef]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductRef] = len(out)
		out = append(out, l)
	}
	return Snapshot{Lines: out}
}

func (s Snapshot) TotalItems() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

func (s Snapshot) TotalPrice() float64 {
	var total float64
	for _, l := range s.Lines {
		total += l.Subtotal()
	}
	return total
}

func (s Snapshot) Len() int {
	return len(s.Lines)
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s Snapshot) Find(ref string) (Line, bool) {
	for _, l := range s.Lines {
		if l.ProductRef == ref {
			return l, true
		}
	}
	return Line{}, false
}

// Quantity returns the quantity held for ref, 0 when absent.
func (s Snapshot) Quantity(ref string) int {
	l, _ := s.Find(ref)
	return l.Quantity
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	if len(s.Lines) == 0 {
		return Snapshot{}
	}
	lines := make([]Line, len(s.Lines))
	copy(lines, s.Lines)
	return Snapshot{Lines: lines}
}

func (s Snapshot) withIncrement(ref string, qty int) Snapshot {
	next := s.Clone()
	for i := range next.Lines {
		if next.Lines[i].ProductRef == ref {
			next.Lines[i].Quantity += qty
			return next
		}
	}
	next.Lines = append(next.Lines, Line{ProductRef: ref, Quantity: qty})
	return next
}

func (s Snapshot) withQuantity(ref string, qty int) Snapshot {
	next := s.Clone()
	for i := range next.Lines {
		if next.Lines[i].ProductRef == ref {
			next.Lines[i].Quantity = qty
			return next
		}
	}
	next.Lines = append(next.Lines, Line{ProductRef: ref, Quantity: qty})
	return next
}

func (s Snapshot) without(ref string) Snapshot {
	var lines []Line
	for _, l := range s.Lines {
		if l.ProductRef != ref {
			lines = append(lines, l)
		}
	}
	return Snapshot{Lines: lines}
}
