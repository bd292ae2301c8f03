package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/ecommerce-scraper/internal/models"
)

const productPage = `<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Phone X","offers":{"@type":"Offer","price":"30999"},"aggregateRating":{"ratingValue":4.4,"reviewCount":"47384"}}</script>
</head><body>
<h1>Phone   X</h1>
<div class="Nx9bqj">₹28,999</div>
</body></html>`

func mustParse(t *testing.T, html string) *Document {
	t.Helper()
	doc, err := Parse(html)
	require.NoError(t, err)
	return doc
}

func TestPriceChainPrefersVisualOverStructured(t *testing.T) {
	doc := mustParse(t, productPage)

	price := PriceChain(models.FieldPriceINR, []string{"div.Nx9bqj"}, CleanStrictPrice, 100)
	assert.Equal(t, "28999", price.Resolve(doc.Root()))

	structuredOnly := FieldStrategy{Field: models.FieldPriceINR, Attempts: []Attempt{Structured{Key: StructuredPrice}}}
	assert.Equal(t, "30999", structuredOnly.Resolve(doc.Root()))
}

func TestPriceChainFallsBackToStructured(t *testing.T) {
	doc := mustParse(t, `<html><head><script type="application/ld+json">{"@type":"Product","offers":{"price":1499}}</script></head><body><p>no visible price</p></body></html>`)

	price := PriceChain(models.FieldPriceINR, []string{"div.Nx9bqj"}, CleanStrictPrice, 100)
	assert.Equal(t, "1499", price.Resolve(doc.Root()))
}

func TestExactTokenRejectsFeeText(t *testing.T) {
	doc := mustParse(t, `<html><body>
<span>₹86 Fee</span>
<div>Extra ₹1000 off</div>
<span>₹86</span>
<span>₹28,999</span>
<span>₹36,999</span>
</body></html>`)

	token := ExactToken{Tags: "div, span, h1, h2, h3, h4", Regex: RupeeToken, Min: 100}
	assert.Equal(t, "28999", token.Resolve(doc.Root()))

	onlyFee := mustParse(t, `<html><body><span>₹86 Fee</span></body></html>`)
	assert.Equal(t, "", token.Resolve(onlyFee.Root()))
}

func TestResolveFallsBackToNotAvailable(t *testing.T) {
	doc := mustParse(t, `<html><body><p>nothing here</p></body></html>`)

	strategies := []FieldStrategy{
		NameChain(models.FieldProductName, []string{"#productTitle"}),
		PriceChain(models.FieldPriceINR, []string{".a-price-whole"}, CleanPrice, 100),
		RatingChain(models.FieldRating, []string{"span.a-icon-alt"}),
		CountChain(models.FieldRatingsCount, []string{"span.Wphh3N"}),
	}

	schema := models.Schema{models.FieldProductName, models.FieldPriceINR, models.FieldRating, models.FieldRatingsCount}
	item := schema.NewItem()
	Apply(item, doc.Root(), strategies)

	for _, f := range schema {
		assert.Equal(t, models.NotAvailable, item.Get(f), f)
	}
}

func TestApplyKeepsResolvedValues(t *testing.T) {
	doc := mustParse(t, productPage)
	item := models.Schema{models.FieldProductName}.NewItem()
	item.Set(models.FieldProductName, "Already set")

	Apply(item, doc.Root(), []FieldStrategy{NameChain(models.FieldProductName, []string{"h1"})})
	assert.Equal(t, "Already set", item.Get(models.FieldProductName))
}

func TestStructuredProductShapes(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Product
	}{
		{
			name: "object",
			json: `{"@type":"Product","name":"A","offers":{"price":"10"},"aggregateRating":{"ratingValue":"4.1","ratingCount":12}}`,
			want: Product{Name: "A", Price: "10", Rating: "4.1", RatingCount: "12"},
		},
		{
			name: "list with graph",
			json: `[{"@type":"BreadcrumbList"},{"@graph":[{"@type":["Product"],"name":"G","offers":[{"lowPrice":199}]}]}]`,
			want: Product{Name: "G", Price: "199"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, `<html><head><script type="application/ld+json">`+tt.json+`</script></head><body></body></html>`)
			got := doc.Product()
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestStructuredIgnoresBrokenJSON(t *testing.T) {
	doc := mustParse(t, `<html><head>
<script type="application/ld+json">{broken</script>
<script type="application/ld+json">{"@type":"Product","name":"Second"}</script>
</head><body></body></html>`)

	require.NotNil(t, doc.Product())
	assert.Equal(t, "Second", doc.Product().Name)
}

func TestRatingAndCountHeuristics(t *testing.T) {
	doc := mustParse(t, `<html><body><div>Rated 4.1 by buyers · 2,000 Ratings</div></body></html>`)

	assert.Equal(t, "4.1", RatingChain(models.FieldRating, nil).Resolve(doc.Root()))
	assert.Equal(t, "2000", CountChain(models.FieldRatingsCount, nil).Resolve(doc.Root()))
}

func TestCountChainReadsAdjacentToLabel(t *testing.T) {
	doc := mustParse(t, `<html><body><span class="Wphh3N">4.4 47,384 Ratings &amp; 3,001 Reviews</span></body></html>`)

	assert.Equal(t, "47384", CountChain(models.FieldRatingsCount, []string{"span.Wphh3N"}).Resolve(doc.Root()))
}

func TestCountChainAfterSymbol(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"star glyph", `<span class="Wphh3N">4.2★47,384 Ratings</span>`, "47384"},
		{"start of text", `<span class="Wphh3N">912 Ratings</span>`, "912"},
		{"decimal tail only", `<span class="Wphh3N">4.5 Ratings</span>`, models.NotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, `<html><body>`+tt.html+`</body></html>`)
			assert.Equal(t, tt.want, CountChain(models.FieldRatingsCount, []string{"span.Wphh3N"}).Resolve(doc.Root()))
		})
	}
}

func TestRanks(t *testing.T) {
	text := "Best Sellers Rank: #1,234 in Electronics (See Top 100 in Electronics)\n" +
		"#56 in In-Ear Headphones\nFeedback\nWould you like to tell us about a lower price?"

	ranks := Ranks(text)
	require.Len(t, ranks, 2)
	assert.Equal(t, Rank{Number: "#1,234", Category: "Electronics"}, ranks[0])
	assert.Equal(t, Rank{Number: "#56", Category: "In-Ear Headphones"}, ranks[1])

	schema := models.Schema{
		models.FieldPrimaryRankNumber, models.FieldPrimaryRankCategory,
		models.FieldSecondaryRankNumber, models.FieldSecondaryRankCategory,
	}
	item := schema.NewItem()
	ApplyRanks(item, text)
	assert.Equal(t, []string{"#1,234", "Electronics", "#56", "In-Ear Headphones"}, item.Row(schema))
}

func TestRanksSkipsDuplicates(t *testing.T) {
	ranks := Ranks("#3 in Books\n#3 in Books\n#9 in Fiction")
	require.Len(t, ranks, 2)
	assert.Equal(t, "#9", ranks[1].Number)
}

func TestInnerText(t *testing.T) {
	doc := mustParse(t, `<html><body><div><p>Hello   <b>world</b></p><script>var x = 1</script><p>Second</p></div></body></html>`)
	assert.Equal(t, "Hello world\nSecond", doc.Text())
}

func TestCards(t *testing.T) {
	doc := mustParse(t, `<html><body>
<div data-id="1"><a href="/p/1">A</a></div>
<div data-id="2">no link</div>
<div data-id="3"><a href="/p/3">C</a></div>
</body></html>`)

	cards := doc.Cards([]string{"div.missing", "div[data-id]"}, "a")
	require.Len(t, cards, 2)

	href, ok := cards[1].Attr("a", "href")
	assert.True(t, ok)
	assert.Equal(t, "/p/3", href)
	assert.Nil(t, cards[0].Product())
}

func TestCleaners(t *testing.T) {
	tests := []struct {
		name  string
		clean Cleaner
		in    string
		want  string
	}{
		{"price trailing dot", CleanPrice, "28,999.", "28999"},
		{"price rs", CleanPrice, "Rs 45", "45"},
		{"price mrp decimals", CleanPrice, "MRP ₹1,299.50", "1299.50"},
		{"price empty", CleanPrice, "free", ""},
		{"strict price", CleanStrictPrice, "₹28,999", "28999"},
		{"strict price extra text", CleanStrictPrice, "₹28,999 off", ""},
		{"rating sentence", CleanRating, "4.3 out of 5 stars", "4.3"},
		{"rating star", CleanRating, "4.4★", "4.4"},
		{"rating none", CleanRating, "no rating", ""},
		{"count", CleanCount, "1,234 ratings", "1234"},
		{"first line", CleanFirstLine, "\n  Amul Butter \n100 g", "Amul Butter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.clean(tt.in))
		})
	}
}
