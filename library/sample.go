package library

import "time"

// sampleCatalog is the bootstrap data set used when the catalog is empty at
// startup. Each entry gets the usual seeded copy #1; extraCopies adds more on
// top for titles a library would stock several of.
var sampleCatalog = []struct {
	title       Title
	extraCopies int
}{
	{Title{TitleID: "CS001", Name: "The C Programming Language", Author: "Kernighan & Ritchie", Publisher: "Prentice Hall", Location: "Main Library", Category: "Computer Science", Price: 45.80, AcquiredDate: NewDate(2023, time.January, 15), LoanCount: 12}, 2},
	{Title{TitleID: "CS002", Name: "Introduction to Algorithms", Author: "Cormen et al.", Publisher: "MIT Press", Location: "East Campus Library", Category: "Computer Science", Price: 68.50, AcquiredDate: NewDate(2023, time.February, 20), LoanCount: 8}, 1},
	{Title{TitleID: "CS003", Name: "Operating System Concepts", Author: "Silberschatz", Publisher: "Wiley", Location: "Main Library", Category: "Computer Science", Price: 89.00, AcquiredDate: NewDate(2023, time.March, 10), LoanCount: 15}, 1},
	{Title{TitleID: "CS004", Name: "Computer Networks", Author: "Tanenbaum", Publisher: "Pearson", Location: "East Campus Library", Category: "Computer Science", Price: 76.20, AcquiredDate: NewDate(2023, time.January, 25), LoanCount: 9}, 2},
	{Title{TitleID: "LIT001", Name: "One Hundred Years of Solitude", Author: "Gabriel García Márquez", Publisher: "Harper", Location: "Main Library", Category: "Literature", Price: 42.80, AcquiredDate: NewDate(2023, time.February, 15), LoanCount: 18}, 1},
	{Title{TitleID: "LIT002", Name: "To Kill a Mockingbird", Author: "Harper Lee", Publisher: "J. B. Lippincott", Location: "East Campus Library", Category: "Literature", Price: 28.90, AcquiredDate: NewDate(2023, time.March, 1), LoanCount: 22}, 2},
	{Title{TitleID: "LIT003", Name: "1984", Author: "George Orwell", Publisher: "Secker & Warburg", Location: "East Campus Library", Category: "Literature", Price: 36.50, AcquiredDate: NewDate(2023, time.February, 8), LoanCount: 7}, 0},
	{Title{TitleID: "HIS001", Name: "Sapiens", Author: "Yuval Noah Harari", Publisher: "Harvill Secker", Location: "East Campus Library", Category: "History", Price: 65.20, AcquiredDate: NewDate(2023, time.April, 1), LoanCount: 13}, 1},
	{Title{TitleID: "HIS002", Name: "The Silk Roads", Author: "Peter Frankopan", Publisher: "Bloomsbury", Location: "Main Library", Category: "History", Price: 48.80, AcquiredDate: NewDate(2023, time.February, 10), LoanCount: 20}, 1},
	{Title{TitleID: "SCI001", Name: "A Brief History of Time", Author: "Stephen Hawking", Publisher: "Bantam", Location: "Main Library", Category: "Science", Price: 52.00, AcquiredDate: NewDate(2023, time.January, 30), LoanCount: 9}, 0},
	{Title{TitleID: "SCI002", Name: "On the Origin of Species", Author: "Charles Darwin", Publisher: "John Murray", Location: "East Campus Library", Category: "Science", Price: 68.80, AcquiredDate: NewDate(2023, time.March, 20), LoanCount: 5}, 0},
	{Title{TitleID: "ENG001", Name: "Practical English Usage", Author: "Michael Swan", Publisher: "Oxford University Press", Location: "Main Library", Category: "Languages", Price: 32.50, AcquiredDate: NewDate(2023, time.January, 12), LoanCount: 35}, 3},
	{Title{TitleID: "ENG002", Name: "Word Power Made Easy", Author: "Norman Lewis", Publisher: "Anchor", Location: "East Campus Library", Category: "Languages", Price: 45.80, AcquiredDate: NewDate(2023, time.February, 18), LoanCount: 28}, 2},
	{Title{TitleID: "ART001", Name: "The Story of Art", Author: "E. H. Gombrich", Publisher: "Phaidon", Location: "Main Library", Category: "Art", Price: 72.50, AcquiredDate: NewDate(2023, time.February, 5), LoanCount: 8}, 0},
	{Title{TitleID: "PHI001", Name: "Sophie's World", Author: "Jostein Gaarder", Publisher: "Aschehoug", Location: "East Campus Library", Category: "Philosophy", Price: 38.80, AcquiredDate: NewDate(2023, time.March, 25), LoanCount: 11}, 1},
	{Title{TitleID: "PHI002", Name: "Meditations", Author: "Marcus Aurelius", Publisher: "Penguin Classics", Location: "Main Library", Category: "Philosophy", Price: 22.50, AcquiredDate: NewDate(2023, time.February, 22), LoanCount: 14}, 0},
}

// ImportSampleData seeds the bootstrap catalog through the normal AddTitle /
// AddCopies path. Intended to run once, only when the catalog is empty at
// startup; it is not a normal operation.
func (c *Coordinator) ImportSampleData() error {
	for _, s := range sampleCatalog {
		if err := c.AddTitle(s.title); err != nil {
			return err
		}
		if s.extraCopies > 0 {
			if _, err := c.AddCopies(s.title.TitleID, s.extraCopies); err != nil {
				return err
			}
		}
	}
	return nil
}
