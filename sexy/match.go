package sexy

import "fmt"

// Match returns nil if actual matches pattern, or an error naming the first
// mismatch. In a pattern, the symbol _ matches any datum and a trailing ...
// matches any remaining list items. Numbers compare by value, so 7 matches
// 7.0.
func Match(pattern, actual *Node) error {
	return match(pattern, actual, "root")
}

func match(pattern, actual *Node, path string) error {
	if pattern.Type == NodeSymbol && pattern.Text == "_" {
		return nil
	}
	if pattern.Type != actual.Type {
		return fmt.Errorf("at %s: expected %s %s, got %s %s", path, pattern.Type, pattern, actual.Type, actual)
	}

	switch pattern.Type {
	case NodeNumber:
		want, err := pattern.Float()
		if err != nil {
			return fmt.Errorf("at %s: bad number in pattern: %w", path, err)
		}
		got, err := actual.Float()
		if err != nil {
			return fmt.Errorf("at %s: %w", path, err)
		}
		if want != got {
			return fmt.Errorf("at %s: expected %s, got %s", path, pattern, actual)
		}
		return nil

	case NodeList:
		for i, item := range pattern.Items {
			if item.Type == NodeEllipsis {
				if i != len(pattern.Items)-1 {
					return fmt.Errorf("at %s: '...' must be the last item of a pattern list", path)
				}
				return nil
			}
			if i >= len(actual.Items) {
				return fmt.Errorf("at %s: expected %d items, got %d in %s", path, len(pattern.Items), len(actual.Items), actual)
			}
			if err := match(item, actual.Items[i], fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		if len(actual.Items) > len(pattern.Items) {
			return fmt.Errorf("at %s: expected %d items, got %d in %s", path, len(pattern.Items), len(actual.Items), actual)
		}
		return nil

	default:
		if pattern.Text != actual.Text {
			return fmt.Errorf("at %s: expected %s, got %s", path, pattern, actual)
		}
		return nil
	}
}
