package invoice

import "strings"

const unknownProduct = "Unknown Product"

// splitDescriptions divides the concatenated description column of a
// multi-product row into n descriptions.
func splitDescriptions(concatenated string, n int) []string {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []string{strings.TrimSpace(concatenated)}
	case n == 2:
		return splitTwoDescriptions(concatenated)
	}

	// Three or more products: equal sized word groups, the last one takes the remainder.
	// Best effort only, product names rarely have equal word counts.
	words := strings.Fields(concatenated)
	size := len(words) / n
	if size == 0 {
		size = 1
	}

	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		start := min(i*size, len(words))
		end := min((i+1)*size, len(words))
		if i == n-1 {
			end = len(words)
		}
		parts = append(parts, strings.Join(words[start:end], " "))
	}
	return parts
}

func splitTwoDescriptions(concatenated string) []string {
	// A single "<n>ml <Capital>" boundary separates the two names unambiguously
	if matches := bottleBoundary.FindAllStringSubmatchIndex(concatenated, -1); len(matches) == 1 {
		idx := matches[0][3]
		return []string{
			strings.TrimSpace(concatenated[:idx]),
			strings.TrimSpace(concatenated[idx:]),
		}
	}

	mid := len(concatenated) / 2
	if space := strings.IndexByte(concatenated[mid:], ' '); space != -1 {
		idx := mid + space
		return []string{
			strings.TrimSpace(concatenated[:idx]),
			strings.TrimSpace(concatenated[idx:]),
		}
	}

	return []string{strings.TrimSpace(concatenated), unknownProduct}
}
