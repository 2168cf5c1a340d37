// Package client is a headless fluid navigator.
//
// A Controller owns a parsed document, a history stack and an HTTP client.
// Links and forms flagged with data-fluid are serviced with fragment
// requests: the controller fetches the target, splices each returned
// fragment into the placeholder (<fluid-block name="...">) carrying the same
// name, keeps the history stack in sync and rebinds the new elements.
//
//	c, err := client.New("http://localhost:8080/")
//	if err != nil {
//		return err
//	}
//	if err := c.Open(ctx); err != nil {
//		return err
//	}
//	err = c.ClickSelector(ctx, `a[href="/about"]`)
//
// Unsafe same-origin requests carry the csrftoken cookie value in the
// X-CSRFToken header, see CSRFTransport.
package client
