package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Elements whose end tag may be omitted in valid HTML
var optionalEndTags = map[string]bool{
	"p": true, "li": true, "dt": true, "dd": true, "option": true,
	"optgroup": true, "tr": true, "td": true, "th": true, "thead": true,
	"tbody": true, "tfoot": true, "colgroup": true, "caption": true,
	"rb": true, "rt": true, "rtc": true, "rp": true,
}

// validate rejects markup that is empty or truncated, either inside a tag
// or with elements still open at the end. The HTML parser itself accepts
// any input, so structure is checked on the token stream first.
func validate(markup string) error {
	if strings.TrimSpace(markup) == "" {
		return errors.New("empty document")
	}
	if strings.LastIndexByte(markup, '<') > strings.LastIndexByte(markup, '>') {
		return errors.New("document ends inside a tag")
	}

	z := html.NewTokenizer(strings.NewReader(markup))
	var open []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			if len(open) > 0 {
				return fmt.Errorf("unexpected end of document, <%s> is not closed", open[len(open)-1])
			}
			return nil

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] || optionalEndTags[tag] {
				continue
			}
			open = append(open, tag)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] || optionalEndTags[tag] {
				continue
			}
			// An end tag closes everything opened after its element.
			// Stray end tags are dropped like a parser would.
			i := len(open) - 1
			for i >= 0 && open[i] != tag {
				i--
			}
			if i >= 0 {
				open = open[:i]
			}
		}
	}
}
