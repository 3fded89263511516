package fetch

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// extractImgSrcs walks the parsed document and collects every <img src>
// attribute value, in document order.
func extractImgSrcs(doc *html.Node) []string {
	var srcs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			for _, attr := range n.Attr {
				if attr.Key == "src" && attr.Val != "" {
					srcs = append(srcs, attr.Val)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return srcs
}

// cryptoShuffle performs a uniform Fisher-Yates shuffle using the OS
// cryptographic RNG, matching spec.md §4.3's requirement that candidate
// image selection not depend on the conditioned output's own randomness.
func cryptoShuffle(items []string) error {
	for i := len(items) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("fetch: shuffling candidate images: %w", err)
		}
		j := int(jBig.Int64())
		items[i], items[j] = items[j], items[i]
	}
	return nil
}

// readHTMLFrame parses body as HTML, collects every <img src>, shuffles the
// candidates with the OS RNG, resolves each against pageURL, and re-fetches
// each in turn until one responds 200 with an image Content-Type and a body
// no larger than maxBytes.
func (c *Client) readHTMLFrame(ctx context.Context, pageURL string, body io.Reader, maxBytes int) ([]byte, error) {
	limited := io.LimitReader(body, int64(maxBytes))
	doc, err := html.Parse(limited)
	if err != nil {
		return nil, fmt.Errorf("fetch: parsing html page %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parsing page url %s: %w", pageURL, err)
	}

	srcs := extractImgSrcs(doc)
	if len(srcs) == 0 {
		return nil, fmt.Errorf("fetch: html page %s has no <img> candidates", pageURL)
	}
	if err := cryptoShuffle(srcs); err != nil {
		return nil, err
	}

	for _, src := range srcs {
		ref, err := url.Parse(src)
		if err != nil {
			continue
		}
		imgURL := base.ResolveReference(ref).String()

		resp, err := c.resty.R().SetContext(ctx).SetDoNotParseResponse(true).Get(imgURL)
		if err != nil {
			continue
		}
		raw := resp.RawResponse
		if raw.StatusCode != 200 || !strings.Contains(strings.ToLower(raw.Header.Get("Content-Type")), "image") {
			raw.Body.Close()
			continue
		}

		data, err := readSnapshot(raw.Body, maxBytes)
		raw.Body.Close()
		if err != nil {
			continue
		}
		return data, nil
	}

	return nil, fmt.Errorf("fetch: no candidate <img> from %s yielded a usable image", pageURL)
}
