// Package receipt renders a priced order as a fixed-width text receipt.
package receipt

import (
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/resto-pricing/internal/money"
	"github.com/noah-isme/resto-pricing/internal/pricing"
)

const defaultWidth = 40

// Receipt is the input to Render.
type Receipt struct {
	Title     string
	Reference string
	Symbol    string
	Items     []pricing.LineItem
	Breakdown pricing.Breakdown
	Width     int
}

// Render writes the receipt. Figures come straight from the breakdown, so the
// printed lines match what was quoted.
func Render(w io.Writer, r Receipt) error {
	p := printer{w: w, width: r.Width, symbol: r.Symbol}
	if p.width < 24 {
		p.width = defaultWidth
	}
	if r.Title != "" {
		p.center(r.Title)
	}
	if r.Reference != "" {
		p.center("#" + r.Reference)
	}
	p.rule()
	for _, it := range r.Items {
		label := fmt.Sprintf("%d x %s", it.Quantity, itemName(it))
		if it.Comped {
			p.line(label, "FREE")
		} else {
			p.line(label, p.amount(it.LineTotal().RoundToCents()))
		}
		for _, a := range it.AddOns {
			p.line("    + "+a.Name, "")
		}
	}
	p.rule()

	b := r.Breakdown
	p.line("Subtotal", p.amount(b.Subtotal))
	for _, tl := range b.TaxLines {
		p.line(fmt.Sprintf("%s (%s%%)", tl.Name, tl.Rate.String()), p.amount(tl.Amount))
	}
	switch b.Discount.Type {
	case pricing.DiscountFlatPercent:
		label := "Discount"
		if b.Discount.Percent != nil {
			label = fmt.Sprintf("Discount (%s%%)", b.Discount.Percent.String())
		}
		p.line(label, "-"+p.amount(b.Discount.Amount))
	case pricing.DiscountLoyalty:
		p.line(fmt.Sprintf("Loyalty (%d pts)", b.Discount.Points), "-"+p.amount(b.Discount.Amount))
	case pricing.DiscountFreeComp:
		// already excluded from the subtotal
		p.line("Comped items", "("+p.amount(b.Discount.Amount)+")")
	}
	p.rule()
	p.line("TOTAL", p.amount(b.Total))
	return p.err
}

func itemName(it pricing.LineItem) string {
	if it.Name != "" {
		return it.Name
	}
	return it.ID
}

type printer struct {
	w      io.Writer
	width  int
	symbol string
	err    error
}

func (p *printer) amount(m money.Money) string {
	return p.symbol + m.String()
}

func (p *printer) write(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s+"\n")
}

func (p *printer) rule() {
	p.write(strings.Repeat("-", p.width))
}

func (p *printer) center(s string) {
	pad := (p.width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	p.write(strings.Repeat(" ", pad) + s)
}

func (p *printer) line(label, value string) {
	space := p.width - len(label) - len(value)
	if space < 1 {
		// truncate long labels rather than break the column
		keep := p.width - len(value) - 1
		if keep < 0 {
			keep = 0
		}
		if keep < len(label) {
			label = label[:keep]
		}
		space = 1
	}
	p.write(label + strings.Repeat(" ", space) + value)
}
