package config

func defaultInstance() InstanceConfig {
	return InstanceConfig{
		Feeds: []string{
			"https://news.google.com/rss/search?q=india+government+schemes&hl=en-IN&gl=IN&ceid=IN:en",
			"https://www.thehindu.com/news/national/?service=rss",
			"https://feeds.feedburner.com/ndtvnews-top-stories",
			"https://www.livemint.com/rss/money",
			"https://economictimes.indiatimes.com/rssfeeds/1286551815.cms",
			"https://techcrunch.com/feed/",
			"https://www.theverge.com/rss/index.xml",
			"https://www.sciencedaily.com/rss/top/technology.xml",
			"https://feeds.bbci.co.uk/news/world/rss.xml",
			"https://www.aljazeera.com/xml/rss/all.xml",
			"https://news.google.com/rss/search?q=geopolitics+war+defense&hl=en-US&gl=US&ceid=US:en",
		},
		Categories: []CategoryConfig{
			{
				Name:        "WELFARE",
				Description: "Indian government schemes, subsidies, ration cards, aadhaar, free grain, farmers welfare, women empowerment, pension schemes, PM Kisan, Awas Yojana.",
				Weight:      14,
				Priority:    1,
				Patterns: []string{
					`\bpm\s?kisan\b`, `\bawas\s?yojana\b`, `\bration\s?card\b`,
					`\bsubsidy\b`, `\bpension\b`, `\baadhaar\b`, `\bpan\s?card\b`,
					`\bfree\s+grain\b`, `\bwomen\s+empowerment\b`, `\bfarmers\b`,
				},
			},
			{
				Name:        "ALERTS",
				Description: "Urgent security warning, cyber crime, banking fraud, OTP scams, deepfake, malware, phishing, ransomware, police alert, data breach.",
				Weight:      10,
				Priority:    2,
				Patterns: []string{
					`\bscam\b`, `\bfraud\b`, `\bcyber\s+crime\b`, `\bphishing\b`,
					`\botp\b`, `\bdeepfake\b`, `\bmalware\b`, `\bransomware\b`,
					`\bhack\b`, `\bdata\s+breach\b`, `\balert\b`,
				},
			},
			{
				Name:        "WAR_GEO",
				Description: "International war, missile attacks, defense military, Russia Ukraine conflict, Israel Gaza Hamas, geopolitics, nuclear threat, NATO operations.",
				Weight:      9,
				Priority:    3,
				Patterns: []string{
					`\bukraine\b`, `\brussia\b`, `\bputin\b`, `\bisrael\b`,
					`\bgaza\b`, `\bchina\b`, `\btaiwan\b`, `\bnato\b`,
					`\bmissile\b`, `\bmilitary\b`, `\bnuclear\b`, `\bterror`,
				},
			},
			{
				Name:        "POLITICS",
				Description: "Parliament session, election results, BJP Congress political news, prime minister speech, new laws passed, court decisions.",
				Weight:      8,
				Priority:    4,
				Patterns: []string{
					`\bbjp\b`, `\bcongress\b`, `\bmodi\b`, `\belection\b`,
					`\bparliament\b`, `\bcourt\b`, `\bprotest\b`,
				},
			},
			{
				Name:        "FINANCE",
				Description: "Stock market crash, RBI repo rate, inflation data, GST tax news, gold price, home loan interest, economy GDP, job recruitment.",
				Weight:      7,
				Priority:    5,
				Patterns: []string{
					`\brbi\b`, `\brepo\s+rate\b`, `\binterest\s+rate\b`,
					`\bgst\b`, `\bsensex\b`, `\bnifty\b`, `\bstock\s+market\b`,
					`\binflation\b`, `\bgdp\b`, `\beconomy\b`,
				},
			},
			{
				Name:        "TECH_SCI",
				Description: "Artificial intelligence breakthrough, space exploration, ISRO NASA launch, new scientific discovery, future technology, robotics, quantum computing.",
				Weight:      6,
				Priority:    6,
				Patterns: []string{
					`\bartificial\s+intelligence\b`, `\bchatgpt\b`, `\bllm\b`,
					`\bisro\b`, `\bnasa\b`, `\bspacex\b`, `\bquantum\b`,
					`\bsemiconductor\b`, `\binvention\b`, `\bdiscovery\b`, `\bbreakthrough\b`,
				},
			},
			{
				Name:        "NOISE",
				Description: "Horoscope, zodiac signs, celebrity gossip, dating tips, fashion wardrobe, movie box office collection, cricket match score, viral video.",
				Weight:      -100,
				Priority:    99,
				Patterns: []string{
					`\bhoroscope\b`, `\bzodiac\b`, `\bgossip\b`, `\bwardrobe\b`,
					`\bbox\s+office\b`, `\bcelebrity\b`, `\bcricket\s+score\b`,
				},
			},
		},
	}
}
