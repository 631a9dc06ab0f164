package resolver

// embedPage mimics an Instagram captioned embed page: a legacy callback, a
// graphql object reachable from two markers, a video child and a
// double-encoded contextJSON blob.
const embedPage = `<!DOCTYPE html><html><head><title>Instagram</title></head><body>
<div class="Embed"><img class="EmbeddedMediaImage" src="https://cdn.ig/fallback.jpg"></div>
<script>window.__additionalDataLoaded('extra',{"graphql":{"shortcode_media":{"__typename":"GraphSidecar","edge_sidecar_to_children":{"edges":[{"node":{"display_url":"https:\/\/cdn.ig\/a.jpg","is_video":false}},{"node":{"display_url":"https://cdn.ig/v.mp4","is_video":true}},{"node":{"display_url":"https://cdn.ig/c.jpg?x=1&amp;y=2","is_video":false}}]}}}});</script>
<script>var s = {"contextJSON":"{\"gql_data\":{\"shortcode_media\":{\"display_url\":\"https:\\\/\\\/cdn.ig\\\/d.jpg\"}}}"};</script>
<script>var broken = {"gql_data": {"shortcode_media": {"display_url": "https://cdn.ig/never.jpg"</script>
</body></html>`

// embedExpected is what the embed strategy must return for embedPage.
var embedExpected = []string{
	"https://cdn.ig/a.jpg",
	"https://cdn.ig/c.jpg?x=1&y=2",
	"https://cdn.ig/d.jpg",
}
