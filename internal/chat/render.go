package chat

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cory-johannsen/multiroll/internal/game/dice"
)

// Card classes of the combined damage card.
const (
	ClassCard     = "dnd5e chat-card item-card mre-damage-card"
	ClassContent  = "card-content"
	ClassSection  = "card-roll formula-group"
	ClassDiceRoll = "dice-roll"
	ClassTotal    = "dice-total"

	// AttrDamageType carries a part's damage-type label on its total element.
	AttrDamageType = "data-damage-type"
)

// Fragment is one rolled part to be rendered into a combined card.
type Fragment struct {
	Roll   *dice.Roll
	Flavor string
}

var rollTemplate = template.Must(template.New("roll").Parse(
	`<div class="dice-roll"><div class="dice-result">` +
		`<div class="dice-formula">{{.Formula}}</div>` +
		`<div class="dice-tooltip">{{range .Parts}}<section class="tooltip-part"><div class="dice">` +
		`<header class="part-header flexrow"><span class="part-formula">{{.Formula}}</span><span class="part-total">{{.Total}}</span></header>` +
		`<ol class="dice-rolls">{{range .Faces}}<li class="{{.Class}}">{{.Value}}</li>{{end}}</ol>` +
		`</div></section>{{end}}</div>` +
		`<h4 class="dice-total">{{.Total}}</h4>` +
		`</div></div>`))

type faceView struct {
	Value int
	Class string
}

type partView struct {
	Formula string
	Total   int
	Faces   []faceView
}

type rollView struct {
	Formula string
	Total   int
	Parts   []partView
}

func viewOf(r *dice.Roll) rollView {
	v := rollView{Formula: r.Formula, Total: r.Total}
	for _, t := range r.Dice() {
		p := partView{Formula: t.String(), Total: t.Total()}
		for _, d := range t.Results {
			class := fmt.Sprintf("roll die d%d", t.Sides)
			switch {
			case !d.Active:
				class += " discarded"
			case d.Result >= t.CriticalThreshold():
				class += " max"
			case d.Result == 1:
				class += " min"
			}
			p.Faces = append(p.Faces, faceView{Value: d.Result, Class: class})
		}
		v.Parts = append(v.Parts, p)
	}
	return v
}

// RenderRoll renders r to its standalone dice-roll markup.
//
// Precondition: r must not be nil.
func RenderRoll(r *dice.Roll) (string, error) {
	var buf bytes.Buffer
	if err := rollTemplate.Execute(&buf, viewOf(r)); err != nil {
		return "", fmt.Errorf("chat: rendering roll %q: %w", r.Formula, err)
	}
	return buf.String(), nil
}

// RenderParts combines the rendered fragments of parts, in order, into one
// damage card. Each fragment's total element is annotated with its flavor
// label and consecutive fragments are separated by a horizontal rule.
//
// Postcondition: the card holds exactly len(parts) dice-roll fragments.
func RenderParts(parts []Fragment) (string, error) {
	card := element(atom.Div, ClassCard)
	card.AppendChild(element(atom.Div, ClassContent))
	section := element(atom.Div, ClassSection)
	card.AppendChild(section)

	for i, part := range parts {
		if part.Roll == nil {
			return "", fmt.Errorf("chat: part %d has no roll", i)
		}
		markup, err := RenderRoll(part.Roll)
		if err != nil {
			return "", err
		}
		nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
			Type:     html.ElementNode,
			Data:     "div",
			DataAtom: atom.Div,
		})
		if err != nil {
			return "", fmt.Errorf("chat: parsing fragment %d: %w", i, err)
		}
		for _, n := range nodes {
			annotate(n, part.Flavor)
			section.AppendChild(n)
		}
		if i < len(parts)-1 {
			section.AppendChild(&html.Node{Type: html.ElementNode, Data: "hr", DataAtom: atom.Hr})
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, card); err != nil {
		return "", fmt.Errorf("chat: rendering card: %w", err)
	}
	return buf.String(), nil
}

func element(a atom.Atom, class string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	if class != "" {
		n.Attr = []html.Attribute{{Key: "class", Val: class}}
	}
	return n
}

func annotate(n *html.Node, flavor string) {
	if n.Type == html.ElementNode && hasClass(n, ClassTotal) {
		setAttr(n, AttrDamageType, flavor)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		annotate(c, flavor)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// CountFragments parses card markup and returns the number of dice-roll
// fragments and separators it holds.
func CountFragments(markup string) (rolls, rules int, err error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return 0, 0, fmt.Errorf("chat: parsing card: %w", err)
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if hasClass(n, ClassDiceRoll) {
				rolls++
			}
			if n.DataAtom == atom.Hr {
				rules++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rolls, rules, nil
}

// DamageTypes returns the damage-type annotation of every total element in
// markup, in document order.
func DamageTypes(markup string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("chat: parsing card: %w", err)
	}
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, ClassTotal) {
			for _, a := range n.Attr {
				if a.Key == AttrDamageType {
					out = append(out, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}
