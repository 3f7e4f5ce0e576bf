package pseudonym

var frenchFirstNames = []string{
	"Adèle", "Agathe", "Alain", "Albert", "Alexandre", "Alice", "Aline", "Amélie", "André", "Anne",
	"Antoine", "Arnaud", "Aurélie", "Baptiste", "Benoît", "Bernard", "Brigitte", "Camille", "Capucine", "Caroline",
	"Catherine", "Cécile", "Céline", "Chantal", "Charles", "Charlotte", "Christian", "Christine", "Claire", "Claude",
	"Clément", "Colette", "Corinne", "Damien", "Daniel", "David", "Denis", "Didier", "Dominique", "Édith",
	"Élise", "Élodie", "Émile", "Emmanuel", "Éric", "Étienne", "Fabrice", "Florence", "François", "Françoise",
	"Frédéric", "Gabriel", "Gaston", "Geneviève", "Georges", "Gérard", "Gilles", "Guillaume", "Hélène", "Henri",
	"Hugo", "Inès", "Isabelle", "Jacqueline", "Jacques", "Jean", "Jeanne", "Jérôme", "Joseph", "Josette",
	"Julien", "Juliette", "Laurent", "Léa", "Léon", "Louis", "Louise", "Lucie", "Luc", "Madeleine",
	"Manon", "Marc", "Margaux", "Marie", "Marine", "Martine", "Mathieu", "Maurice", "Michel", "Michèle",
	"Monique", "Nathalie", "Nicolas", "Noël", "Océane", "Olivier", "Pascal", "Patrice", "Patrick", "Paul",
	"Pauline", "Philippe", "Pierre", "Raymond", "Renée", "Roger", "Sandrine", "Sébastien", "Simone", "Sophie",
	"Stéphane", "Suzanne", "Sylvie", "Théo", "Thérèse", "Thierry", "Thomas", "Valérie", "Véronique", "Victor",
	"Vincent", "Virginie", "Yves", "Yvonne", "Zoé",
}

var frenchLastNames = []string{
	"Andre", "Arnaud", "Aubert", "Barbier", "Baron", "Benoit", "Bernard", "Bertin", "Blanc", "Blanchard",
	"Bonnet", "Bouvier", "Boyer", "Brun", "Carpentier", "Caron", "Charpentier", "Chevalier", "Clement", "Colin",
	"Collet", "Denis", "Deschamps", "Dubois", "Dufour", "Dumas", "Dumont", "Dupont", "Dupuis", "Durand",
	"Faure", "Fleury", "Fontaine", "Fournier", "Francois", "Gaillard", "Garnier", "Gauthier", "Gerard", "Giraud",
	"Guerin", "Guillaume", "Henry", "Hubert", "Jacob", "Joly", "Lacroix", "Lambert", "Laurent", "Leclerc",
	"Lefebvre", "Lefevre", "Legrand", "Lemaire", "Lemoine", "Leroy", "Lucas", "Marchand", "Marie", "Martin",
	"Masson", "Mathieu", "Mercier", "Meunier", "Meyer", "Michel", "Moreau", "Morel", "Morin", "Muller",
	"Nicolas", "Noel", "Perrin", "Petit", "Picard", "Pierre", "Renard", "Richard", "Rey", "Robert",
	"Robin", "Roche", "Rousseau", "Roussel", "Roux", "Roy", "Schmitt", "Simon", "Thomas", "Vidal",
	"Vincent", "Gautier", "Perrot", "Leblanc", "Guyot", "Hamon", "Colas", "Riviere", "Marechal", "Poulain",
}

var frenchCities = []string{
	"Abbeville", "Agen", "Aix-en-Provence", "Ajaccio", "Albi", "Alençon", "Amiens", "Angers", "Angoulême", "Annecy",
	"Arras", "Aurillac", "Auxerre", "Avignon", "Bayonne", "Beauvais", "Belfort", "Besançon", "Béziers", "Blois",
	"Bordeaux", "Bourges", "Brest", "Caen", "Cahors", "Calais", "Carcassonne", "Chambéry", "Chartres", "Cherbourg",
	"Clermont-Ferrand", "Colmar", "Dieppe", "Dijon", "Dunkerque", "Épinal", "Évreux", "Gap", "Grenoble", "Guéret",
	"La Rochelle", "Laval", "Le Havre", "Le Mans", "Lille", "Limoges", "Lorient", "Lyon", "Mâcon", "Marseille",
	"Metz", "Montauban", "Montpellier", "Moulins", "Mulhouse", "Nancy", "Nantes", "Nevers", "Nice", "Nîmes",
	"Orléans", "Pau", "Périgueux", "Perpignan", "Quimper", "Reims", "Rennes", "Rodez", "Rouen", "Saint-Brieuc",
	"Saint-Étienne", "Saint-Malo", "Strasbourg", "Tarbes", "Toulon", "Toulouse", "Tours", "Troyes", "Valence", "Vannes",
}
