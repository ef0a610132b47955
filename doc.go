// Package fedquery federates catalog searches across heterogeneous backends.
//
// A search is expressed once as a filter tree (package filter) over abstract
// metacard attributes. For every configured Source the federator:
//   - Translates the filter into the backend's native query with its
//     translate.Translator
//   - Skips the source when the filter has no native representation, does
//     not concern the source, or would only match everything
//   - Executes the native query through the source.Executor, bounded by a
//     per-source timeout and a global concurrency limit
//   - Maps the raw hits into records with the source.ResultMapper
//
// Records are merged in source order. A failing backend never fails the
// search; its classified error is reported in Response.Sources.
//
// # Quick Start
//
//	fc, err := fedquery.LoadConfig("fedquery.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fed, err := fedquery.Build(ctx, fc, nil, fedquery.NewMetrics(prometheus.DefaultRegisterer))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fed.Close()
//
//	resp, err := fed.Search(ctx, fedquery.Query{
//	    Filter: filter.AllOf(
//	        filter.Attribute("title").Like("release*"),
//	        filter.Attribute("modified").After(since),
//	    ),
//	    Page: source.Pagination{Limit: 20},
//	})
//
// Sources can also be assembled by hand with New, using any
// source.Executor implementation:
//
//	caps, attrs, _ := translate.Profile(translate.ProfileDuckDB)
//	tr, _ := translate.NewTranslator(caps, &translate.Options{Mapper: attrmap.New(attrs)})
//	fed, err := fedquery.New(fedquery.Config{
//	    Sources: []fedquery.Source{{Name: "catalog", Translator: tr, Executor: store}},
//	})
//
// # Backends
//
// Package source/local stores metacards in DuckDB, source/confluence
// queries the Confluence CQL search API and source/flight talks to a remote
// catalog over Arrow Flight. The flight package also provides the gateway
// server exposing any executor to flight clients.
package fedquery
