package categorize

// DefaultVocabulary returns the built-in Apple news vocabulary. A fresh copy
// is returned on every call.
func DefaultVocabulary() []Category {
	return []Category{
		{
			Name:  "ios",
			Label: "iOS",
			Keywords: []string{
				"iOS", "iPhone", "iPad", "iPadOS", "Apple Watch", "watchOS",
				"Siri", "App Store", "SwiftUI",
			},
		},
		{
			Name:  "hardware",
			Label: "Hardware",
			Keywords: []string{
				"Mac", "MacBook", "iMac", "Mac mini", "Mac Pro", "MacBook Pro",
				"MacBook Air", "AirPods", "AirTag", "Vision Pro", "Apple Silicon",
				"M1", "M2", "M3", "M4",
			},
		},
		{
			Name:  "apps",
			Label: "Apps",
			Keywords: []string{
				"App", "application", "logiciel", "mise à jour", "update",
				"Safari", "Mail", "Photos", "jeux", "games", "gaming",
			},
		},
		{
			Name:  "services",
			Label: "Services",
			Keywords: []string{
				"Apple TV+", "Apple Music", "Apple Arcade", "iCloud", "Apple Pay",
				"Apple Card", "Apple One", "abonnement", "subscription",
			},
		},
	}
}
