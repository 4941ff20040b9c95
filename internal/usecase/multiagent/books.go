package multiagent

// Book name catalogs used by the scripture rules.

// cjkBookNames are the full Chinese Union Version book names.
var cjkBookNames = []string{
	"创世记", "出埃及记", "利未记", "民数记", "申命记", "约书亚记", "士师记", "路得记",
	"撒母耳记上", "撒母耳记下", "列王纪上", "列王纪下", "历代志上", "历代志下",
	"以斯拉记", "尼希米记", "以斯帖记", "约伯记", "诗篇", "箴言", "传道书", "雅歌",
	"以赛亚书", "耶利米书", "耶利米哀歌", "以西结书", "但以理书", "何西阿书", "约珥书",
	"阿摩司书", "俄巴底亚书", "约拿书", "弥迦书", "那鸿书", "哈巴谷书", "西番雅书",
	"哈该书", "撒迦利亚书", "玛拉基书",
	"马太福音", "马可福音", "路加福音", "约翰福音", "使徒行传", "罗马书",
	"哥林多前书", "哥林多后书", "加拉太书", "以弗所书", "腓立比书", "歌罗西书",
	"帖撒罗尼迦前书", "帖撒罗尼迦后书", "提摩太前书", "提摩太后书", "提多书", "腓利门书",
	"希伯来书", "雅各书", "彼得前书", "彼得后书", "约翰一书", "约翰二书", "约翰三书",
	"犹大书", "启示录",
}

// cjkBookShortNames are the conventional one- or two-character abbreviations.
var cjkBookShortNames = []string{
	"创", "出", "利", "民", "申", "书", "士", "得", "撒上", "撒下", "王上", "王下",
	"代上", "代下", "拉", "尼", "斯", "伯", "诗", "箴", "传", "歌", "赛", "耶", "哀",
	"结", "但", "何", "珥", "摩", "俄", "拿", "弥", "鸿", "哈", "番", "该", "亚", "玛",
	"太", "可", "路", "约", "徒", "罗", "林前", "林后", "加", "弗", "腓", "西",
	"帖前", "帖后", "提前", "提后", "多", "门", "来", "雅", "彼前", "彼后",
	"约一", "约二", "约三", "犹", "启",
}

// latinBookNames are English book names and common abbreviations.
// Numbered books take an optional 1-3 prefix in the pattern itself.
var latinBookNames = []string{
	"Genesis", "Gen", "Exodus", "Exod", "Ex", "Leviticus", "Lev", "Numbers", "Num",
	"Deuteronomy", "Deut", "Joshua", "Josh", "Judges", "Judg", "Ruth", "Samuel", "Sam",
	"Kings", "Kgs", "Chronicles", "Chr", "Ezra", "Nehemiah", "Neh", "Esther", "Esth",
	"Job", "Psalms", "Psalm", "Psa", "Ps", "Proverbs", "Prov", "Ecclesiastes", "Eccl",
	"Song of Solomon", "Song of Songs", "Song", "Isaiah", "Isa", "Jeremiah", "Jer",
	"Lamentations", "Lam", "Ezekiel", "Ezek", "Daniel", "Dan", "Hosea", "Hos", "Joel",
	"Amos", "Obadiah", "Obad", "Jonah", "Micah", "Mic", "Nahum", "Nah", "Habakkuk", "Hab",
	"Zephaniah", "Zeph", "Haggai", "Hag", "Zechariah", "Zech", "Malachi", "Mal",
	"Matthew", "Matt", "Mt", "Mark", "Mk", "Luke", "Lk", "John", "Jn", "Acts",
	"Romans", "Rom", "Corinthians", "Cor", "Galatians", "Gal", "Ephesians", "Eph",
	"Philippians", "Phil", "Colossians", "Col", "Thessalonians", "Thess", "Timothy", "Tim",
	"Titus", "Philemon", "Phlm", "Hebrews", "Heb", "James", "Jas", "Peter", "Pet",
	"Jude", "Revelation", "Rev",
}

// cjkAbbrevBooks is the closed abbreviated list matched by the last rule.
var cjkAbbrevBooks = []string{"诗篇", "箴言", "传道书", "雅歌"}
