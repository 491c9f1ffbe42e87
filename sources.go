package main

import (
	// Import all source adapters to trigger their init() functions
	_ "github.com/rubiojr/vendorscout/pkg/sources/business"
	_ "github.com/rubiojr/vendorscout/pkg/sources/listings"
	_ "github.com/rubiojr/vendorscout/pkg/sources/social"
)
