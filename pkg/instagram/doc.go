// Package instagram recognizes Instagram post URLs and describes where the
// post's media can be found in its public embed page.
//
// Example usage:
//
//	post, ok := instagram.ParsePostURL(u)
//	if ok {
//	    body := fetch(post.EmbedURL())
//	    for _, marker := range instagram.ObjectMarkers {
//	        spans := jsonscan.ObjectsAfter(body, marker)
//	        // decode and walk spans
//	    }
//	}
package instagram
